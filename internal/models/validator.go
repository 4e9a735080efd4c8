package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gpustack/internal/failure"
	"gpustack/internal/prompt"
)

// Rejection reasons
const (
	ReasonDenied        = "unquantized, denied"
	ReasonMissingQuant  = "missing quantization tag"
	ReasonUserDeclined  = "user declined"
	confirmationMessage = "Model %q has no quantization tag (q4/q5/q6/q8) and may not fit in VRAM. Continue anyway?"
)

// ErrRejected is wrapped by every naming rejection
var ErrRejected = errors.New("model rejected")

// RejectionError carries the rejected model and the reason
type RejectionError struct {
	Model  string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("model %q rejected: %s", e.Model, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return ErrRejected
}

// Full-precision names that are refused regardless of mode
var deniedModels = map[string]struct{}{
	"llama3:latest":  {},
	"llama3":         {},
	"llama-3":        {},
	"llama-3:latest": {},
}

var quantTags = []string{"q4", "q5", "q6", "q8"}

// HasQuantTag reports whether name carries a q4/q5/q6/q8 marker, case-insensitively
func HasQuantTag(name string) bool {
	lower := strings.ToLower(name)
	for _, tag := range quantTags {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// IsDenied reports whether name is on the deny list, case-insensitively
func IsDenied(name string) bool {
	_, ok := deniedModels[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Evaluate classifies a model name without side effects
func Evaluate(model string) Verdict {
	switch {
	case IsDenied(model):
		return Verdict{Model: model, Decision: DecisionReject, Reason: ReasonDenied}
	case !HasQuantTag(model):
		return Verdict{Model: model, Decision: DecisionNeedsConfirmation, Reason: ReasonMissingQuant}
	default:
		return Verdict{Model: model, Decision: DecisionAccept}
	}
}

// Validate applies mode to the verdict for model. In warn mode a model
// without a quantization tag is accepted only when the confirmer answers
// exactly "y" or "Y". Rejections are failure.ValidationRejected errors.
func Validate(ctx context.Context, model string, mode Mode, confirmer prompt.Confirmer) error {
	v := Evaluate(model)

	switch v.Decision {
	case DecisionAccept:
		return nil
	case DecisionReject:
		return reject(model, v.Reason)
	}

	if mode != ModeWarn {
		return reject(model, v.Reason)
	}
	if confirmer == nil {
		return reject(model, ReasonUserDeclined)
	}

	answer, err := confirmer.Confirm(ctx, fmt.Sprintf(confirmationMessage, model))
	if err != nil {
		return reject(model, ReasonUserDeclined)
	}
	if a := strings.TrimSpace(answer); a == "y" || a == "Y" {
		return nil
	}
	return reject(model, ReasonUserDeclined)
}

func reject(model, reason string) error {
	return failure.New(failure.ValidationRejected, "validate model", &RejectionError{Model: model, Reason: reason})
}

// RejectionReason returns the reason carried by a rejection error
func RejectionReason(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// HasQuantized reports whether any name carries a quantization tag
func HasQuantized(names []string) bool {
	for _, n := range names {
		if HasQuantTag(n) {
			return true
		}
	}
	return false
}

// Contains reports whether model is among names. Ollama lists untagged
// models with an implicit ":latest", so "mistral" matches "mistral:latest".
func Contains(names []string, model string) bool {
	want := normalizeTag(model)
	for _, n := range names {
		if normalizeTag(n) == want {
			return true
		}
	}
	return false
}

func normalizeTag(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "" && !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}
