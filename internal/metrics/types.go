package metrics

import (
	"time"
)

// SetupSample summarises one setup run for export
type SetupSample struct {
	Timestamp   time.Time
	Success     bool
	Duration    time.Duration
	HealthPolls int
	VRAMTotalMB *int // nil when the GPU probe was skipped or failed
	Model       string
	ModelPulled bool
}
