package diag

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gpustack/internal/fsutil"
	"gpustack/internal/logging"
)

// ManifestName is the manifest entry inside every bundle
const ManifestName = "diag_manifest.json"

// Packager creates diagnostic ZIP packages
type Packager struct {
	config    *Config
	collector *Collector
	logger    *logging.Logger
}

// NewPackager creates a new diagnostic packager
func NewPackager(cfg *Config, sources Sources, logger *logging.Logger) *Packager {
	return &Packager{
		config:    cfg,
		collector: NewCollector(cfg, sources, logger),
		logger:    logger,
	}
}

// CreatePackage collects every artifact and writes the bundle to OutputPath
func (p *Packager) CreatePackage(ctx context.Context) (string, error) {
	p.logger.Info("diag.package.start", "Creating diagnostic package", map[string]interface{}{
		"output": p.config.OutputPath,
	})

	files := p.collector.Collect(ctx)

	manifest := p.createManifest(files)
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	files[ManifestName] = manifestJSON

	data, err := buildZIP(files)
	if err != nil {
		return "", fmt.Errorf("failed to create ZIP: %w", err)
	}
	if err := fsutil.AtomicWriteFile(p.config.OutputPath, data, fsutil.DefaultFilePermissions, p.logger); err != nil {
		return "", fmt.Errorf("failed to write package: %w", err)
	}

	p.logger.Info("diag.package.complete", "Diagnostic package created", map[string]interface{}{
		"output":     p.config.OutputPath,
		"file_count": len(files),
	})
	return p.config.OutputPath, nil
}

func (p *Packager) createManifest(files map[string][]byte) Manifest {
	manifest := Manifest{
		Timestamp: p.collector.now().UTC().Format(time.RFC3339),
		Host:      hostname(),
		Version:   p.config.Version,
		RunID:     p.config.RunID,
		Files:     make([]ManifestFile, 0, len(files)),
	}
	for _, path := range sortedKeys(files) {
		manifest.Files = append(manifest.Files, ManifestFile{
			Path:      path,
			SizeBytes: int64(len(files[path])),
			SHA256:    CalculateSHA256(files[path]),
		})
	}
	return manifest
}

func buildZIP(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, path := range sortedKeys(files) {
		w, err := zw.Create(path)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", path, err)
		}
		if _, err := w.Write(files[path]); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortedKeys(files map[string][]byte) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
