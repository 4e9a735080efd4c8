package gpu

// Probe sources
const (
	SourceSMI  = "nvidia-smi"
	SourceNVML = "nvml"
)

// GPUInfo represents information about a single GPU
type GPUInfo struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	UUID          string `json:"uuid,omitempty"`
	DriverVersion string `json:"driver_version"`
	VRAMTotalMB   int    `json:"vram_total_mb"`
	VRAMFreeMB    int    `json:"vram_free_mb"`
}

// GPUReport represents the complete GPU detection report
type GPUReport struct {
	Source        string    `json:"source"`
	DriverVersion string    `json:"driver_version"`
	CUDAVersion   int       `json:"cuda_version,omitempty"`
	GPUs          []GPUInfo `json:"gpus"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// Largest returns the device with the most total VRAM
func (r GPUReport) Largest() (GPUInfo, bool) {
	if len(r.GPUs) == 0 {
		return GPUInfo{}, false
	}
	best := r.GPUs[0]
	for _, g := range r.GPUs[1:] {
		if g.VRAMTotalMB > best.VRAMTotalMB {
			best = g
		}
	}
	return best, true
}

// ContainerToolkitReport represents NVIDIA Container Toolkit detection
type ContainerToolkitReport struct {
	DockerSupport  bool   `json:"docker_support"`
	ContainerRun   bool   `json:"container_run"`
	ToolkitVersion string `json:"toolkit_version,omitempty"`
	ContainerGPU   string `json:"container_gpu,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}
