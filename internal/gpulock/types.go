package gpulock

import (
	"errors"
	"time"
)

// ErrHeld is returned when another live run holds the lock
var ErrHeld = errors.New("GPU host lock is held")

// LockInfo represents the lock file contents
type LockInfo struct {
	Holder  string    `json:"holder"`
	RunID   string    `json:"run_id"`
	PID     int       `json:"pid"`
	SinceTS time.Time `json:"since_ts"`
}

// Free reports whether the info describes an unlocked host
func (l LockInfo) Free() bool {
	return l.RunID == ""
}

// HeldError describes the run currently holding the lock
type HeldError struct {
	Info LockInfo
	Age  time.Duration
}

func (e *HeldError) Error() string {
	if e.Info.RunID == "" {
		return "GPU host lock file is unreadable (last modified " + e.Age.Round(time.Second).String() + " ago)"
	}
	return "GPU host lock is held by " + e.Info.Holder + " (run " + e.Info.RunID + ", acquired " + e.Age.Round(time.Second).String() + " ago)"
}

// Unwrap lets errors.Is match ErrHeld
func (e *HeldError) Unwrap() error {
	return ErrHeld
}
