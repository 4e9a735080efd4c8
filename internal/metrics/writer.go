// Package metrics exports setup run results in the Prometheus textfile
// format read by node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"gpustack/internal/logging"
)

const namespace = "gpustack"

// Writer renders samples into a textfile
type Writer struct {
	logger *logging.Logger
}

// NewWriter creates a new metrics writer
func NewWriter(logger *logging.Logger) *Writer {
	return &Writer{
		logger: logger,
	}
}

// Registry builds a fresh registry holding the gauges for sample
func Registry(sample SetupSample) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "setup_success",
		Help:      "1 if the last setup run finished without a fatal failure",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "setup_duration_seconds",
		Help:      "Wall time of the last setup run in seconds",
	})
	polls := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_polls",
		Help:      "Container health polls issued during the last setup run",
	})
	pulled := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "model_pulled",
		Help:      "1 if the last setup run pulled the model",
	}, []string{"model"})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "setup_last_run_timestamp_seconds",
		Help:      "Unix time the last setup run finished",
	})

	reg.MustRegister(success, duration, polls, pulled, lastRun)

	success.Set(boolToFloat(sample.Success))
	duration.Set(sample.Duration.Seconds())
	polls.Set(float64(sample.HealthPolls))
	pulled.WithLabelValues(sample.Model).Set(boolToFloat(sample.ModelPulled))
	if !sample.Timestamp.IsZero() {
		lastRun.Set(float64(sample.Timestamp.Unix()))
	}

	if sample.VRAMTotalMB != nil {
		vram := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gpu_vram_total_megabytes",
			Help:      "Total VRAM of the largest detected GPU in MiB",
		})
		reg.MustRegister(vram)
		vram.Set(float64(*sample.VRAMTotalMB))
	}

	return reg
}

// Write renders sample to path atomically
func (w *Writer) Write(sample SetupSample, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(path, Registry(sample)); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}

	w.logger.Debug("metrics.textfile.written", "Metrics textfile written", map[string]interface{}{
		"path": path,
	})
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
