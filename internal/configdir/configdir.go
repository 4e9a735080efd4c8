package configdir

import (
	"os"
	"path/filepath"
)

const defaultConfigDir = "/etc/gpustack"

// EnvConfigDir overrides the system configuration directory
const EnvConfigDir = "GPUSTACK_CONFIG_DIR"

// ConfigDir resolves the configuration directory respecting overrides
func ConfigDir() string {
	if env := os.Getenv(EnvConfigDir); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	return defaultConfigDir
}

// EnvStateDir overrides the directory holding runtime state such as the host lock
const EnvStateDir = "GPUSTACK_STATE_DIR"

// StateDir resolves the state directory: the override, then the user cache
// directory, then the system temp directory
func StateDir() string {
	if env := os.Getenv(EnvStateDir); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "gpustack")
	}
	return filepath.Join(os.TempDir(), "gpustack")
}
