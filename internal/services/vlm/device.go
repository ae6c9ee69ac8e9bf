package vlm

import (
	"context"
	"strings"

	"vlmprep/internal/deps"
)

// Device names.
const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
	DeviceCPU  = "cpu"
)

// SelectDevice resolves a device preference. An explicit cuda, mps or cpu
// preference is returned unchanged; auto (or empty) picks the accelerator the
// detector finds and falls back to cpu.
func SelectDevice(ctx context.Context, preference string, detector deps.Detector) string {
	switch pref := strings.ToLower(strings.TrimSpace(preference)); pref {
	case DeviceCUDA, DeviceMPS, DeviceCPU:
		return pref
	}
	switch detector.Detect(ctx) {
	case deps.AcceleratorCUDA:
		return DeviceCUDA
	case deps.AcceleratorMPS:
		return DeviceMPS
	default:
		return DeviceCPU
	}
}
