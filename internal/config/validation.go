package config

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// RuntimeDocker identifies the Docker container runtime option.
	RuntimeDocker = "docker"
	// RuntimePodman identifies the Podman container runtime option.
	RuntimePodman = "podman"

	// ModeStrict rejects unquantized model names outright.
	ModeStrict = "strict"
	// ModeWarn asks for confirmation before accepting them.
	ModeWarn = "warn"

	// GPUSourceSMI probes through nvidia-smi.
	GPUSourceSMI = "smi"
	// GPUSourceNVML probes through NVML (requires a cuda build).
	GPUSourceNVML = "nvml"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateContainerRuntime()...)
	errors = append(errors, c.validateNames()...)
	errors = append(errors, c.validateMode()...)
	errors = append(errors, c.validateHealth()...)
	errors = append(errors, c.validateGPU()...)
	errors = append(errors, c.validateOllama()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateContainerRuntime() []ValidationError {
	if c.ContainerRuntime == RuntimeDocker || c.ContainerRuntime == RuntimePodman {
		return nil
	}

	return []ValidationError{{
		Path:    "container_runtime",
		Message: fmt.Sprintf("must be '%s' or '%s', got '%s'", RuntimeDocker, RuntimePodman, c.ContainerRuntime),
	}}
}

func (c *Config) validateNames() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Model) == "" {
		errors = append(errors, ValidationError{Path: "model", Message: "must not be empty"})
	}
	if strings.TrimSpace(c.ContainerName) == "" {
		errors = append(errors, ValidationError{Path: "container_name", Message: "must not be empty"})
	}
	if strings.TrimSpace(c.ServiceName) == "" {
		errors = append(errors, ValidationError{Path: "service_name", Message: "must not be empty"})
	}

	return errors
}

func (c *Config) validateMode() []ValidationError {
	validModes := []string{ModeStrict, ModeWarn}
	if contains(validModes, c.Validation.Mode) {
		return nil
	}

	return []ValidationError{{
		Path:    "validation.mode",
		Message: fmt.Sprintf("must be one of %v, got '%s'", validModes, c.Validation.Mode),
	}}
}

func (c *Config) validateHealth() []ValidationError {
	var errors []ValidationError

	if c.Health.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "health.timeout_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Health.TimeoutSeconds),
		})
	}

	if c.Health.IntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "health.interval_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Health.IntervalSeconds),
		})
	} else if c.Health.TimeoutSeconds >= 1 && c.Health.IntervalSeconds > c.Health.TimeoutSeconds {
		errors = append(errors, ValidationError{
			Path:    "health.interval_seconds",
			Message: fmt.Sprintf("must not exceed timeout_seconds (%d), got %d", c.Health.TimeoutSeconds, c.Health.IntervalSeconds),
		})
	}

	return errors
}

func (c *Config) validateGPU() []ValidationError {
	validSources := []string{GPUSourceSMI, GPUSourceNVML}
	if contains(validSources, c.GPU.Source) {
		return nil
	}

	return []ValidationError{{
		Path:    "gpu.source",
		Message: fmt.Sprintf("must be one of %v, got '%s'", validSources, c.GPU.Source),
	}}
}

func (c *Config) validateOllama() []ValidationError {
	u, err := url.Parse(c.Ollama.URL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return nil
	}

	return []ValidationError{{
		Path:    "ollama.url",
		Message: fmt.Sprintf("must be an absolute http(s) URL, got '%s'", c.Ollama.URL),
	}}
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
