package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"vlmprep/internal/config"
	"vlmprep/internal/fileutil"
	"vlmprep/internal/logging"
	"vlmprep/internal/media/video"
	"vlmprep/internal/services"
)

const stageName = "frames"

var frameNamePattern = regexp.MustCompile(`^frame_[0-9]+\.jpg$`)

// Source yields decoded frames in order. *video.Decoder satisfies it.
type Source interface {
	Info() video.Info
	Next() (video.Frame, error)
	Close() error
}

// OpenFunc opens a video for sequential decoding.
type OpenFunc func(ctx context.Context, path string) (Source, error)

// WriteFunc persists a single frame image.
type WriteFunc func(img image.Image, path string, quality int) error

// Options describes one extraction run.
type Options struct {
	VideoPath string
	OutputDir string
	// Interval keeps frames whose index is a multiple of it. Must be >= 1.
	Interval int
	// Clean removes frame_<n>.jpg files left by earlier runs before decoding.
	Clean       bool
	JPEGQuality int
}

// Result summarizes an extraction run.
type Result struct {
	Decoded int
	Written int
	Files   []string
	Removed int
	// Truncated is set when decoding stopped early with an error; the frames
	// written before the failure are kept.
	Truncated bool
	DecodeErr error
}

// Extractor samples every Nth frame of a video into JPEG files.
type Extractor struct {
	open   OpenFunc
	write  WriteFunc
	logger *slog.Logger
}

// NewExtractor returns an extractor that decodes with the ffmpeg tools named
// in cfg.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	opts := video.Options{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
	if cfg != nil {
		opts = video.Options{FFmpeg: cfg.FFmpegBinary(), FFprobe: cfg.FFprobeBinary()}
	}
	open := func(ctx context.Context, path string) (Source, error) {
		dec, err := video.Open(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		return dec, nil
	}
	return NewExtractorWith(open, video.WriteJPEG, logger)
}

// NewExtractorWith builds an extractor from explicit collaborators.
func NewExtractorWith(open OpenFunc, write WriteFunc, logger *slog.Logger) *Extractor {
	if write == nil {
		write = video.WriteJPEG
	}
	return &Extractor{open: open, write: write, logger: logging.NewComponentLogger(logger, stageName)}
}

// SetLogger replaces the extractor logger.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	e.logger = logging.NewComponentLogger(logger, stageName)
}

// FrameName returns the file name used for the frame at index.
func FrameName(index int) string {
	return "frame_" + strconv.Itoa(index) + ".jpg"
}

// IsFrameName reports whether name matches the extractor's output naming.
func IsFrameName(name string) bool {
	return frameNamePattern.MatchString(name)
}

// Extract decodes opts.VideoPath from the first frame and writes frame i as
// frame_{i}.jpg whenever i is a multiple of opts.Interval.
//
// An unopenable source is a fatal error. A decode failure after frames were
// produced stops the run and is reported through Result.Truncated. Context
// cancellation stops between frames and returns the partial result together
// with the context error.
func (e *Extractor) Extract(ctx context.Context, opts Options) (Result, error) {
	var result Result
	if opts.Interval < 1 {
		return result, services.Wrap(services.ErrValidation, stageName, "validate", fmt.Sprintf("interval must be >= 1, got %d", opts.Interval), nil)
	}
	if err := fileutil.EnsureDir(opts.OutputDir); err != nil {
		return result, services.Wrap(services.ErrValidation, stageName, "prepare output", opts.OutputDir, err)
	}

	logger := logging.WithContext(ctx, e.logger)
	source, err := e.open(ctx, opts.VideoPath)
	if err != nil {
		return result, err
	}
	defer source.Close()

	info := source.Info()
	logger.Info("video opened",
		logging.String("video", opts.VideoPath),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Int64("estimated_frames", info.EstimatedFrames),
		logging.Int("interval", opts.Interval),
	)

	if opts.Clean {
		removed, err := removeStaleFrames(opts.OutputDir)
		result.Removed = removed
		if err != nil {
			return result, services.Wrap(services.ErrValidation, stageName, "clean output", opts.OutputDir, err)
		}
		if removed > 0 {
			logger.Info("removed stale frames", logging.Int("removed", removed))
		}
	}

	sampler := logging.NewProgressSampler(10)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		frame, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if result.Decoded == 0 {
				return result, services.Wrap(services.ErrDecode, stageName, "decode", fmt.Sprintf("no frames could be decoded from %q", opts.VideoPath), err)
			}
			result.Truncated = true
			result.DecodeErr = err
			logging.WarnWithContext(logger, "decoding stopped early; keeping frames extracted so far", "decode_truncated",
				logging.Int("decoded", result.Decoded),
				logging.Int("written", result.Written),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the video file for corruption"),
				logging.String(logging.FieldImpact, "later frames are missing from the output"),
			)
			break
		}

		if frame.Index%opts.Interval == 0 {
			name := FrameName(frame.Index)
			if err := e.write(frame.Image, filepath.Join(opts.OutputDir, name), opts.JPEGQuality); err != nil {
				return result, services.Wrap(services.ErrValidation, stageName, "write frame", name, err)
			}
			result.Written++
			result.Files = append(result.Files, name)
			logger.Debug("frame written", logging.String("file", name))
		}
		result.Decoded++

		if info.EstimatedFrames > 0 && sampler.ShouldLog(result.Decoded, int(info.EstimatedFrames)) {
			logger.Info("extraction progress",
				logging.Int("decoded", result.Decoded),
				logging.Int("written", result.Written),
			)
		}
	}

	return result, nil
}

func removeStaleFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsFrameName(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
