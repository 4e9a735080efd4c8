package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"gpustack/internal/configdir"
)

const (
	systemConfigFile = "config.yaml"
	userConfigDir    = ".gpustack"
	userConfigFile   = "config.yaml"
)

// Environment variables recognised by ApplyEnv
const (
	EnvModel           = "OLLAMA_MODEL"
	EnvContainer       = "OLLAMA_CONTAINER"
	EnvService         = "GPUSTACK_SERVICE"
	EnvComposeFile     = "GPUSTACK_COMPOSE_FILE"
	EnvValidationMode  = "GPUSTACK_VALIDATION_MODE"
	EnvHealthTimeout   = "GPUSTACK_HEALTH_TIMEOUT"
	EnvHealthInterval  = "GPUSTACK_HEALTH_INTERVAL"
	EnvSkipGPU         = "GPUSTACK_SKIP_GPU"
	EnvVerifyContainer = "GPUSTACK_VERIFY_CONTAINER"
	EnvOllamaURL       = "GPUSTACK_OLLAMA_URL"
	EnvLogLevel        = "GPUSTACK_LOG_LEVEL"
	EnvMetricsTextfile = "GPUSTACK_METRICS_FILE"
	EnvRuntime         = "GPUSTACK_RUNTIME"
)

// Load builds the effective configuration.
// Priority: defaults < system config < user config < explicit path < environment
func Load(explicitPath string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if err := mergeConfigFile(&cfg, SystemConfigPath()); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to load system config: %w", err)
	}

	if userPath := UserConfigPath(); userPath != "" {
		if err := mergeConfigFile(&cfg, userPath); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicitPath != "" {
		if err := mergeConfigFile(&cfg, explicitPath); err != nil {
			return cfg, fmt.Errorf("failed to load config from %s: %w", explicitPath, err)
		}
	}

	if getenv != nil {
		if err := cfg.ApplyEnv(getenv); err != nil {
			return cfg, err
		}
	}

	if validationErrors := cfg.Validate(); len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}

	return cfg, nil
}

// LoadFrom loads configuration from a specific file path on top of defaults
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := mergeConfigFile(&cfg, path); err != nil {
		return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if validationErrors := cfg.Validate(); len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}

	return cfg, nil
}

// mergeConfigFile decodes a YAML or TOML file over cfg; keys absent from
// the file keep their current values
func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is operator supplied or a fixed location
	if err != nil {
		return err
	}

	var modelProbe struct {
		Model string `yaml:"model" toml:"model"`
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse TOML: %w", err)
		}
		_ = toml.Unmarshal(data, &modelProbe)
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
		_ = yaml.Unmarshal(data, &modelProbe)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}

	if modelProbe.Model != "" {
		cfg.ModelSource = SourceFile
	}
	return nil
}

// ApplyEnv overlays recognised environment variables
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) bool {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
			return true
		}
		return false
	}

	if str(EnvModel, &c.Model) {
		c.ModelSource = SourceEnv
	}
	str(EnvContainer, &c.ContainerName)
	str(EnvService, &c.ServiceName)
	str(EnvComposeFile, &c.ComposeFile)
	str(EnvValidationMode, &c.Validation.Mode)
	str(EnvOllamaURL, &c.Ollama.URL)
	str(EnvLogLevel, &c.Logging.Level)
	str(EnvMetricsTextfile, &c.Metrics.Textfile)
	str(EnvRuntime, &c.ContainerRuntime)

	if err := envInt(getenv, EnvHealthTimeout, &c.Health.TimeoutSeconds); err != nil {
		return err
	}
	if err := envInt(getenv, EnvHealthInterval, &c.Health.IntervalSeconds); err != nil {
		return err
	}

	if err := envBool(getenv, EnvSkipGPU, &c.GPU.Skip); err != nil {
		return err
	}
	return envBool(getenv, EnvVerifyContainer, &c.GPU.VerifyContainer)
}

func envBool(getenv func(string) string, key string, dst *bool) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	*dst = b
	return nil
}

func envInt(getenv func(string) string, key string, dst *int) error {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

// Overrides carries values supplied on the command line; empty fields are ignored
type Overrides struct {
	Model          string
	ContainerName  string
	ComposeFile    string
	ValidationMode string
	SkipGPU        *bool
	GPUSource      string
	VerifyGPU      *bool
}

// ApplyOverrides applies command-line values, the highest-precedence layer
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Model != "" {
		c.Model = o.Model
		c.ModelSource = SourceFlag
	}
	if o.ContainerName != "" {
		c.ContainerName = o.ContainerName
	}
	if o.ComposeFile != "" {
		c.ComposeFile = o.ComposeFile
	}
	if o.ValidationMode != "" {
		c.Validation.Mode = o.ValidationMode
	}
	if o.SkipGPU != nil {
		c.GPU.Skip = *o.SkipGPU
	}
	if o.GPUSource != "" {
		c.GPU.Source = o.GPUSource
	}
	if o.VerifyGPU != nil {
		c.GPU.VerifyContainer = *o.VerifyGPU
	}
}

// FormatValidationErrors formats validation errors for display
func FormatValidationErrors(errors []ValidationError) string {
	return formatValidationErrors(errors)
}

func formatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	if len(errors) == 1 {
		return errors[0].Error()
	}
	result := fmt.Sprintf("%d validation errors:\n", len(errors))
	for _, err := range errors {
		result += "  - " + err.Error() + "\n"
	}
	return result
}

// SystemConfigPath returns the path to the system configuration file
func SystemConfigPath() string {
	return filepath.Join(configdir.ConfigDir(), systemConfigFile)
}

// UserConfigPath returns the path to the user configuration file
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, userConfigDir, userConfigFile)
}
