// Package vram turns total GPU memory into a model-size recommendation.
package vram

import (
	"fmt"

	"gpustack/internal/gpu"
)

// ThresholdMB is the smallest total VRAM treated as sufficient (a 12 GB card)
const ThresholdMB = 12000

// Tier classifies available VRAM
type Tier string

const (
	TierLow        Tier = "low"
	TierSufficient Tier = "sufficient"
)

// Advice is the advisor's output; it never blocks the flow
type Advice struct {
	Tier        Tier   `json:"tier"`
	VRAMTotalMB int    `json:"vram_total_mb"`
	Message     string `json:"message"`
}

// Classify maps total VRAM in MB to a tier and recommendation
func Classify(vramTotalMB int) Advice {
	if vramTotalMB < ThresholdMB {
		return Advice{
			Tier:        TierLow,
			VRAMTotalMB: vramTotalMB,
			Message: fmt.Sprintf(
				"%d MB VRAM is below %d MB: use quantized models (q4/q5 tags such as llama3:8b-instruct-q4_K_M) and avoid llama3:latest, which does not fit",
				vramTotalMB, ThresholdMB),
		}
	}

	return Advice{
		Tier:        TierSufficient,
		VRAMTotalMB: vramTotalMB,
		Message: fmt.Sprintf(
			"%d MB VRAM is sufficient; quantized models (q4-q8) are still recommended for throughput and stability",
			vramTotalMB),
	}
}

// ClassifyReport classifies the device with the most VRAM. ok is false when
// the report has no devices.
func ClassifyReport(report gpu.GPUReport) (Advice, bool) {
	best, ok := report.Largest()
	if !ok {
		return Advice{}, false
	}
	return Classify(best.VRAMTotalMB), true
}
