package deps

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const nvidiaSMI = "nvidia-smi"

// Accelerator names an inference device family.
type Accelerator string

const (
	AcceleratorNone Accelerator = ""
	AcceleratorCUDA Accelerator = "cuda"
	AcceleratorMPS  Accelerator = "mps"
)

// Detector reports whether a device family is usable on this host. Tests build
// one directly instead of using DefaultDetector.
type Detector struct {
	GOOS   string
	GOARCH string
	// CUDA runs the NVIDIA device listing. A nil func falls back to nvidia-smi.
	CUDA func(ctx context.Context) bool
}

// DefaultDetector inspects the running host.
func DefaultDetector() Detector {
	return Detector{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH, CUDA: nvidiaDevicesPresent}
}

// Detect returns the best available accelerator, or AcceleratorNone when
// inference must run on the CPU.
func (p Detector) Detect(ctx context.Context) Accelerator {
	cuda := p.CUDA
	if cuda == nil {
		cuda = nvidiaDevicesPresent
	}
	if cuda(ctx) {
		return AcceleratorCUDA
	}
	if p.GOOS == "darwin" && p.GOARCH == "arm64" {
		return AcceleratorMPS
	}
	return AcceleratorNone
}

func nvidiaDevicesPresent(ctx context.Context) bool {
	if _, err := exec.LookPath(nvidiaSMI); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, nvidiaSMI, "-L").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "GPU")
}
