// Package diag assembles a support bundle for a gpustack host: the effective
// configuration, the GPU report, container state and logs.
package diag

import "time"

// Manifest represents the diagnostic package manifest
type Manifest struct {
	Timestamp string         `json:"timestamp"`
	Host      string         `json:"host"`
	Version   string         `json:"gpustack_version"`
	RunID     string         `json:"run_id,omitempty"`
	Files     []ManifestFile `json:"files"`
}

// ManifestFile represents a file in the diagnostic package
type ManifestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// Config configures diagnostic collection
type Config struct {
	OutputPath    string
	Version       string
	RunID         string
	LogFile       string
	IncludeLogs   bool
	ContainerName string
	LogTail       int
}

// DefaultLogTail is how many container log lines land in the bundle
const DefaultLogTail = 500

// NewConfig creates a default diagnostic config
func NewConfig(version, containerName string, now time.Time) *Config {
	return &Config{
		OutputPath:    DefaultOutputPath(now),
		Version:       version,
		IncludeLogs:   true,
		ContainerName: containerName,
		LogTail:       DefaultLogTail,
	}
}

// DefaultOutputPath names the bundle after its creation time
func DefaultOutputPath(now time.Time) string {
	return "gpustack-diag-" + now.UTC().Format("20060102-150405") + ".zip"
}
