package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vlmprep/internal/config"
	"vlmprep/internal/deps"
	"vlmprep/internal/services/vlm"
)

const modelCheckTimeout = 30 * time.Second

// CheckModel verifies that the caption model can be loaded. It uses a single
// attempt (no retries) and closes the handle afterwards.
func CheckModel(ctx context.Context, name string, cfg config.ModelConfig, opts ...vlm.Option) Result {
	if strings.TrimSpace(cfg.Model) == "" {
		return Result{Name: name, Detail: "model not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	cfg.RetryAttempts = 1
	model, err := vlm.Load(checkCtx, cfg, nil, opts...)
	if err != nil {
		return Result{Name: name, Detail: summarizeModelError(err)}
	}
	defer model.Close()
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s via %s on %s", model.Name(), cfg.Backend, model.Device()),
	}
}

// CheckDevice reports which device a caption run would use.
func CheckDevice(ctx context.Context, preference string, detector deps.Detector) Result {
	device := vlm.SelectDevice(ctx, preference, detector)
	pref := strings.TrimSpace(preference)
	if pref == "" {
		pref = vlm.DeviceAuto
	}
	return Result{Name: "Device", Passed: true, Detail: fmt.Sprintf("%s (preference %s)", device, pref)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableParent verifies the nearest existing ancestor of path is
// writable, so a file can be created there later.
func CheckWritableParent(name, path string) Result {
	dir := filepath.Dir(path)
	for {
		if info, err := os.Stat(dir); err == nil {
			if !info.IsDir() {
				return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, dir)}
			}
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s not writable: %v)", path, dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", path)}
}

// CheckSystemDeps evaluates the external binaries vlmprep executes.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

// summarizeModelError produces a human-readable summary for model load failures.
func summarizeModelError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "load timed out (model endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "load timed out (model endpoint unreachable)"
	}
	return err.Error()
}
