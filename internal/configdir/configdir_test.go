package configdir

import (
	"path/filepath"
	"testing"
)

func TestConfigDir_Default(t *testing.T) {
	t.Setenv(EnvConfigDir, "")

	if got := ConfigDir(); got != "/etc/gpustack" {
		t.Errorf("Expected /etc/gpustack, got %s", got)
	}
}

func TestConfigDir_Override(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)

	want, _ := filepath.Abs(dir)
	if got := ConfigDir(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestStateDir_Override(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvStateDir, dir)

	want, _ := filepath.Abs(dir)
	if got := StateDir(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestStateDir_Default(t *testing.T) {
	t.Setenv(EnvStateDir, "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache-home")

	if got := StateDir(); filepath.Base(got) != "gpustack" {
		t.Errorf("Expected a gpustack directory, got %s", got)
	}
}
