package models

import "time"

// Mode selects how model names without a quantization tag are handled
type Mode string

const (
	// ModeStrict rejects them without asking.
	ModeStrict Mode = "strict"
	// ModeWarn asks the operator for confirmation.
	ModeWarn Mode = "warn"
)

// Decision is the outcome of the pure naming check
type Decision string

const (
	DecisionAccept            Decision = "accept"
	DecisionReject            Decision = "reject"
	DecisionNeedsConfirmation Decision = "needs-confirmation"
)

// Verdict pairs a decision with the reason behind it
type Verdict struct {
	Model    string   `json:"model"`
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
}

// Target identifies where a pull runs
type Target string

const (
	TargetContainer Target = "container"
	TargetLocal     Target = "local"
)

// PullResult describes a completed pull
type PullResult struct {
	Model     string   `json:"model"`
	Target    Target   `json:"target"`
	Installed []string `json:"installed,omitempty"`
}

// ModelInfo is an installed model as reported by the Ollama API
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"` // Size in bytes
	Digest     string    `json:"digest,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}
