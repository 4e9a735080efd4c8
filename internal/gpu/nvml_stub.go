//go:build !cuda

package gpu

// NVMLInterface is a placeholder interface for builds without CUDA support.
type NVMLInterface interface{}
