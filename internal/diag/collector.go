package diag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gpustack/internal/config"
	"gpustack/internal/gpu"
	"gpustack/internal/logging"
	"gpustack/internal/services"
)

// Sources are the live systems a bundle is assembled from. Any of them may
// be nil; the matching artifacts are then left out.
type Sources struct {
	Settings *config.Config
	Runtime  services.Runtime
	Prober   gpu.Prober
}

// Collector gathers diagnostic artifacts
type Collector struct {
	config   *Config
	sources  Sources
	redactor *Redactor
	logger   *logging.Logger
	now      func() time.Time
}

// NewCollector creates a new diagnostic collector
func NewCollector(cfg *Config, sources Sources, logger *logging.Logger) *Collector {
	return &Collector{
		config:   cfg,
		sources:  sources,
		redactor: NewRedactor(),
		logger:   logger,
		now:      time.Now,
	}
}

// Collect runs every collector and merges the results. Individual failures
// are logged and skipped so a broken runtime still yields a bundle.
func (c *Collector) Collect(ctx context.Context) map[string][]byte {
	all := make(map[string][]byte)
	steps := []struct {
		name string
		fn   func(context.Context) (map[string][]byte, error)
	}{
		{"config", c.CollectConfig},
		{"gpu", c.CollectGPU},
		{"container", c.CollectContainer},
		{"logs", c.CollectLogs},
		{"sysinfo", c.CollectSystemInfo},
	}

	for _, step := range steps {
		files, err := step.fn(ctx)
		if err != nil {
			c.logger.Warn("diag.collect."+step.name+".error", "Collector failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for path, content := range files {
			all[path] = content
		}
	}
	return all
}

// CollectConfig renders the effective configuration with secrets redacted
func (c *Collector) CollectConfig(_ context.Context) (map[string][]byte, error) {
	if c.sources.Settings == nil {
		return nil, nil
	}

	data, err := yaml.Marshal(c.sources.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	content := fmt.Sprintf("# model source: %s\n%s", c.sources.Settings.ModelSource, data)
	return map[string][]byte{
		"config/effective.yaml": c.redact("config/effective.yaml", content),
	}, nil
}

// CollectGPU records the probe result, including a failed probe's message
func (c *Collector) CollectGPU(ctx context.Context) (map[string][]byte, error) {
	if c.sources.Prober == nil {
		return nil, nil
	}

	report, err := c.sources.Prober.Probe(ctx)
	if err != nil && report.ErrorMessage == "" {
		report.ErrorMessage = err.Error()
	}

	data, marshalErr := json.MarshalIndent(report, "", "  ")
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal gpu report: %w", marshalErr)
	}
	return map[string][]byte{"gpu/report.json": data}, nil
}

// CollectContainer captures runtime version, container state and recent logs
func (c *Collector) CollectContainer(ctx context.Context) (map[string][]byte, error) {
	rt := c.sources.Runtime
	if rt == nil {
		return nil, nil
	}

	files := make(map[string][]byte)

	version, err := rt.Version(ctx)
	if err != nil {
		version = "unavailable: " + err.Error()
	}
	files["runtime/version.txt"] = []byte(version + "\n")

	name := c.config.ContainerName
	if name == "" {
		return files, nil
	}

	var state strings.Builder
	if rt.IsRunning(ctx) {
		state.WriteString("daemon: reachable\n")
	} else {
		state.WriteString("daemon: unreachable\n")
	}
	fmt.Fprintf(&state, "container: %s\n", name)
	visible, err := rt.IsContainerVisible(ctx, name)
	if err != nil {
		fmt.Fprintf(&state, "visible: unknown (%v)\n", err)
	} else {
		fmt.Fprintf(&state, "visible: %t\n", visible)
	}
	if visible {
		if status, err := rt.GetContainerStatus(ctx, name); err == nil {
			fmt.Fprintf(&state, "status: %s\n", status)
		}
		if health, err := rt.GetContainerHealth(ctx, name); err == nil {
			fmt.Fprintf(&state, "health: %s\n", health)
		}
	}
	files["container/state.txt"] = []byte(state.String())

	if !visible || !c.config.IncludeLogs {
		return files, nil
	}

	tail := c.config.LogTail
	if tail <= 0 {
		tail = DefaultLogTail
	}
	logs, err := rt.GetContainerLogs(ctx, name, tail)
	if err != nil {
		return files, fmt.Errorf("failed to read container logs: %w", err)
	}
	files["container/logs.txt"] = c.redact("container/logs.txt", logs)

	c.logger.Info("diag.collect.container.complete", "Container state collected", map[string]interface{}{
		"container": name,
		"visible":   visible,
	})
	return files, nil
}

// CollectLogs includes the gpustack log file, redacted
func (c *Collector) CollectLogs(_ context.Context) (map[string][]byte, error) {
	if !c.config.IncludeLogs || c.config.LogFile == "" {
		return nil, nil
	}

	content, err := os.ReadFile(filepath.Clean(c.config.LogFile))
	if os.IsNotExist(err) {
		c.logger.Warn("diag.collect.logs.missing", "Log file not found", map[string]interface{}{
			"path": c.config.LogFile,
		})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	name := "logs/" + filepath.Base(c.config.LogFile)
	return map[string][]byte{
		name: c.redact(name, string(content)),
	}, nil
}

func (c *Collector) redact(file, content string) []byte {
	if rules := c.redactor.Matches(content); len(rules) > 0 {
		c.logger.Debug("diag.redact.applied", "Secrets redacted from bundle file", map[string]interface{}{
			"file":  file,
			"rules": rules,
		})
	}
	return []byte(c.redactor.Redact(content))
}

// CollectSystemInfo gathers system and version information
func (c *Collector) CollectSystemInfo(_ context.Context) (map[string][]byte, error) {
	sysInfo := map[string]interface{}{
		"timestamp":        c.now().UTC().Format(time.RFC3339),
		"host":             hostname(),
		"gpustack_version": c.config.Version,
		"go_version":       runtime.Version(),
		"os":               runtime.GOOS,
		"arch":             runtime.GOARCH,
	}
	if c.sources.Runtime != nil {
		sysInfo["container_runtime"] = c.sources.Runtime.Binary()
	}

	data, err := json.MarshalIndent(sysInfo, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal system info: %w", err)
	}
	return map[string][]byte{"system_info.json": data}, nil
}

// CalculateSHA256 computes SHA256 hash of data
func CalculateSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
