package preflight

import (
	"context"
	"strings"

	"vlmprep/internal/config"
	"vlmprep/internal/deps"
	"vlmprep/internal/services/vlm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the filesystem, device and model checks for cfg. Optional
// destinations are only checked when configured.
func RunAll(ctx context.Context, cfg *config.Config, opts ...vlm.Option) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Logging.File {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
		results = append(results, CheckWritableParent("Metrics textfile", path))
	}
	results = append(results, CheckDevice(ctx, cfg.Captions.Device, deps.DefaultDetector()))
	results = append(results, CheckModel(ctx, "Caption model", cfg.CaptionModel(), opts...))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
