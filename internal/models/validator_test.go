package models

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpustack/internal/failure"
)

// scriptedConfirmer returns a fixed answer and counts calls
type scriptedConfirmer struct {
	answer string
	err    error
	calls  int
}

func (c *scriptedConfirmer) Confirm(context.Context, string) (string, error) {
	c.calls++
	return c.answer, c.err
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		model    string
		decision Decision
		reason   string
	}{
		{"llama3:latest", DecisionReject, ReasonDenied},
		{"LLAMA3", DecisionReject, ReasonDenied},
		{"Llama-3:Latest", DecisionReject, ReasonDenied},
		{"llama-3", DecisionReject, ReasonDenied},
		{"llama3:8b-instruct-q4_K_M", DecisionAccept, ""},
		{"mistral:7b-Q5_K_S", DecisionAccept, ""},
		{"phi3:q8_0", DecisionAccept, ""},
		{"qwen2:7b-q6_K", DecisionAccept, ""},
		{"mistral", DecisionNeedsConfirmation, ReasonMissingQuant},
		{"llama3:70b", DecisionNeedsConfirmation, ReasonMissingQuant},
		{"llama3:8b-fp16", DecisionNeedsConfirmation, ReasonMissingQuant},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			v := Evaluate(tt.model)
			assert.Equal(t, tt.decision, v.Decision)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, tt.model, v.Model)
		})
	}
}

func TestValidate_DeniedInEveryMode(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModeWarn} {
		for _, model := range []string{"llama3:latest", "LLAMA3:LATEST", "llama3", "llama-3", "llama-3:latest"} {
			confirmer := &scriptedConfirmer{answer: "y"}
			err := Validate(context.Background(), model, mode, confirmer)

			require.Error(t, err, "%s in %s mode", model, mode)
			assert.True(t, errors.Is(err, ErrRejected))
			assert.True(t, failure.Is(err, failure.ValidationRejected))
			assert.Equal(t, ReasonDenied, RejectionReason(err))
			assert.Zero(t, confirmer.calls, "denied names must not prompt")
		}
	}
}

func TestValidate_QuantizedAcceptedWithoutPrompt(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModeWarn} {
		confirmer := &scriptedConfirmer{answer: "n"}
		err := Validate(context.Background(), "llama3:8b-instruct-q4_K_M", mode, confirmer)

		assert.NoError(t, err)
		assert.Zero(t, confirmer.calls)
	}
}

func TestValidate_StrictRejectsMissingTag(t *testing.T) {
	confirmer := &scriptedConfirmer{answer: "y"}
	err := Validate(context.Background(), "mistral", ModeStrict, confirmer)

	require.Error(t, err)
	assert.Equal(t, ReasonMissingQuant, RejectionReason(err))
	assert.Zero(t, confirmer.calls)
}

func TestValidate_WarnPrompts(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		err      error
		accepted bool
	}{
		{"lower y", "y", nil, true},
		{"upper Y", "Y", nil, true},
		{"padded y", "  y\n", nil, true},
		{"yes is not y", "yes", nil, false},
		{"n", "n", nil, false},
		{"empty", "", nil, false},
		{"read error", "y", errors.New("stdin closed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirmer := &scriptedConfirmer{answer: tt.answer, err: tt.err}
			err := Validate(context.Background(), "mistral:7b", ModeWarn, confirmer)

			assert.Equal(t, 1, confirmer.calls)
			if tt.accepted {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, ReasonUserDeclined, RejectionReason(err))
		})
	}
}

func TestValidate_WarnWithoutConfirmerDeclines(t *testing.T) {
	err := Validate(context.Background(), "mistral", ModeWarn, nil)
	require.Error(t, err)
	assert.Equal(t, ReasonUserDeclined, RejectionReason(err))
}

func TestHasQuantized(t *testing.T) {
	assert.False(t, HasQuantized(nil))
	assert.False(t, HasQuantized([]string{"llama3:latest", "mistral:7b"}))
	assert.True(t, HasQuantized([]string{"mistral:7b", "phi3:mini-Q4_0"}))
}

func TestContains(t *testing.T) {
	installed := []string{"llama3:8b-instruct-q4_K_M", "mistral:latest"}

	assert.True(t, Contains(installed, "llama3:8b-instruct-q4_K_M"))
	assert.True(t, Contains(installed, "LLAMA3:8B-INSTRUCT-Q4_K_M"))
	assert.True(t, Contains(installed, "mistral"))
	assert.False(t, Contains(installed, "llama3"))
	assert.False(t, Contains(nil, "mistral"))
}
