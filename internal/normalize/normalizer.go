package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"vlmprep/internal/config"
	"vlmprep/internal/fileutil"
	"vlmprep/internal/logging"
	"vlmprep/internal/media/imageio"
	"vlmprep/internal/services"
)

const stageName = "normalize"

// FailurePolicy decides what happens when an input image cannot be processed.
type FailurePolicy string

const (
	// PolicyAbort stops the batch at the first failing image. Images written
	// before the failure remain in the output directory.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip records the failure and continues with the next image.
	PolicySkip FailurePolicy = "skip"
)

// ParsePolicy converts a configuration value into a FailurePolicy.
func ParsePolicy(value string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", value)
	}
}

// Options describes one normalization run.
type Options struct {
	InputDir   string
	OutputDir  string
	Resolution int
	// Extensions filters input files; entries are lowercase with a leading dot.
	Extensions  []string
	Policy      FailurePolicy
	JPEGQuality int
}

// Result summarizes a normalization run.
type Result struct {
	Processed []string
	Skipped   []services.SkippedItem
}

// Normalizer converts a directory of images to fixed-size square RGB images.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer constructs a normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logging.NewComponentLogger(logger, stageName)}
}

// SetLogger replaces the normalizer logger.
func (n *Normalizer) SetLogger(logger *slog.Logger) {
	n.logger = logging.NewComponentLogger(logger, stageName)
}

// Normalize processes every matching regular file of opts.InputDir in lexical
// order: decode, convert to RGB, resample to Resolution×Resolution and save
// under the same name in opts.OutputDir. Files with other extensions are
// ignored.
func (n *Normalizer) Normalize(ctx context.Context, opts Options) (Result, error) {
	var result Result
	if opts.Resolution <= 0 {
		return result, services.Wrap(services.ErrValidation, stageName, "validate", fmt.Sprintf("resolution must be positive, got %d", opts.Resolution), nil)
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyAbort
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = config.DefaultImageExtensions
	}

	if err := fileutil.RequireDir(opts.InputDir); err != nil {
		return result, services.Wrap(services.ErrNotFound, stageName, "list input", opts.InputDir, err)
	}
	names, err := fileutil.ListFiles(opts.InputDir, exts)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, stageName, "list input", opts.InputDir, err)
	}
	if err := fileutil.EnsureDir(opts.OutputDir); err != nil {
		return result, services.Wrap(services.ErrValidation, stageName, "prepare output", opts.OutputDir, err)
	}

	logger := logging.WithContext(ctx, n.logger)
	logger.Info("normalizing images",
		logging.Int("images", len(names)),
		logging.Int("resolution", opts.Resolution),
		logging.String("on_error", string(policy)),
	)

	sampler := logging.NewProgressSampler(10)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		itemLogger := logging.WithContext(services.WithItem(ctx, name), n.logger)
		if err := n.processOne(opts, name); err != nil {
			if policy == PolicyAbort {
				logging.ErrorWithContext(itemLogger, "normalization aborted", "normalize_aborted",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "remove or repair the file, or rerun with --keep-going"),
				)
				return result, err
			}
			result.Skipped = append(result.Skipped, services.SkippedItem{Name: name, Reason: err.Error()})
			logging.WarnWithContext(itemLogger, "image skipped", "normalize_skipped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "image is missing from the normalized output"),
			)
			continue
		}
		result.Processed = append(result.Processed, name)
		itemLogger.Debug("image normalized")
		if sampler.ShouldLog(i+1, len(names)) {
			logger.Info("normalization progress",
				logging.Int("done", i+1),
				logging.Int("total", len(names)),
			)
		}
	}
	return result, nil
}

func (n *Normalizer) processOne(opts Options, name string) error {
	img, _, err := imageio.Load(filepath.Join(opts.InputDir, name))
	if err != nil {
		return services.Wrap(services.ErrDecode, stageName, "load", name, err)
	}
	out, err := imageio.Resample(img, opts.Resolution)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "resample", name, err)
	}
	if err := imageio.Save(out, filepath.Join(opts.OutputDir, name), imageio.SaveOptions{JPEGQuality: opts.JPEGQuality}); err != nil {
		return services.Wrap(services.ErrValidation, stageName, "save", name, err)
	}
	return nil
}
