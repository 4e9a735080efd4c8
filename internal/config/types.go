package config

// Config represents the complete gpustack configuration
type Config struct {
	ContainerRuntime string           `yaml:"container_runtime" toml:"container_runtime"`
	Model            string           `yaml:"model" toml:"model"`
	ContainerName    string           `yaml:"container_name" toml:"container_name"`
	ServiceName      string           `yaml:"service_name" toml:"service_name"`
	ComposeFile      string           `yaml:"compose_file" toml:"compose_file"`
	Validation       ValidationConfig `yaml:"validation" toml:"validation"`
	Health           HealthConfig     `yaml:"health" toml:"health"`
	GPU              GPUConfig        `yaml:"gpu" toml:"gpu"`
	Ollama           OllamaConfig     `yaml:"ollama" toml:"ollama"`
	Logging          LoggingConfig    `yaml:"logging" toml:"logging"`
	Metrics          MetricsConfig    `yaml:"metrics" toml:"metrics"`

	// ModelSource records where Model came from; it is never read from files.
	ModelSource Source `yaml:"-" toml:"-"`
}

// Source identifies which layer supplied a value
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// ValidationConfig selects how model names without a quantization tag are treated
type ValidationConfig struct {
	Mode string `yaml:"mode" toml:"mode"`
}

// HealthConfig controls container health polling and the HTTP reachability probe
type HealthConfig struct {
	TimeoutSeconds  int  `yaml:"timeout_seconds" toml:"timeout_seconds"`
	IntervalSeconds int  `yaml:"interval_seconds" toml:"interval_seconds"`
	HTTPCheck       bool `yaml:"http_check" toml:"http_check"`
}

// GPUConfig controls GPU probing
type GPUConfig struct {
	Skip            bool   `yaml:"skip" toml:"skip"`
	Source          string `yaml:"source" toml:"source"`
	VerifyContainer bool   `yaml:"verify_container" toml:"verify_container"`
	TestImage       string `yaml:"test_image" toml:"test_image"`
}

// OllamaConfig locates the inference service
type OllamaConfig struct {
	URL    string `yaml:"url" toml:"url"`
	Binary string `yaml:"binary" toml:"binary"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	File   string `yaml:"file" toml:"file"`
}

// MetricsConfig configures the optional Prometheus textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile" toml:"textfile"`
}

// ModelExplicit reports whether the model was chosen by the operator rather
// than falling back to the built-in default
func (c Config) ModelExplicit() bool {
	return c.ModelSource != "" && c.ModelSource != SourceDefault
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
