package config

const (
	// DefaultModel is pulled when no model is requested
	DefaultModel = "llama3:8b-instruct-q4_K_M"
	// DefaultContainerName matches container_name in the bundled compose file
	DefaultContainerName = "ollama"
	// DefaultServiceName is the compose service to start
	DefaultServiceName = "ollama"
	// DefaultOllamaURL is the well-known local Ollama endpoint
	DefaultOllamaURL = "http://localhost:11434"
	// DefaultGPUTestImage is used for the --gpus all container check
	DefaultGPUTestImage = "nvidia/cuda:12.3.1-base-ubuntu22.04"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		ContainerRuntime: RuntimeDocker,
		Model:            DefaultModel,
		ContainerName:    DefaultContainerName,
		ServiceName:      DefaultServiceName,
		ComposeFile:      "",
		Validation: ValidationConfig{
			Mode: ModeStrict,
		},
		Health: HealthConfig{
			TimeoutSeconds:  120,
			IntervalSeconds: 5,
			HTTPCheck:       true,
		},
		GPU: GPUConfig{
			Skip:            false,
			Source:          GPUSourceSMI,
			VerifyContainer: true,
			TestImage:       DefaultGPUTestImage,
		},
		Ollama: OllamaConfig{
			URL:    DefaultOllamaURL,
			Binary: "ollama",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		ModelSource: SourceDefault,
	}
}
