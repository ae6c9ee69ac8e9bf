package captions

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"vlmprep/internal/config"
	"vlmprep/internal/fileutil"
	"vlmprep/internal/logging"
	"vlmprep/internal/media/imageio"
	"vlmprep/internal/services"
	"vlmprep/internal/textutil"
)

const stageName = "captions"

// ErrEmptyCaption is recorded when a model returns no usable text.
var ErrEmptyCaption = errors.New("model returned an empty caption")

// Captioner produces a caption for one RGB image.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// LoadFunc acquires a captioner, typically by loading a model onto a device.
type LoadFunc func(ctx context.Context) (Captioner, error)

// State is the annotator lifecycle position.
type State int

const (
	StateLoading State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options describes one annotation run.
type Options struct {
	InputDir   string
	OutputFile string
	// Extensions filters input files; entries are lowercase with a leading dot.
	Extensions []string
	// ItemTimeout bounds each Caption call. Zero disables the limit.
	ItemTimeout time.Duration
	// OnProgress, when set, is called after every image with the number of
	// images handled so far.
	OnProgress func(done, total int)
}

// Result summarizes an annotation run.
type Result struct {
	Total     int
	Captioned int
	Skipped   []services.SkippedItem
}

// Annotator captions every image in a directory with a loaded model and
// writes the mapping once at the end. It moves strictly from Loading to
// Running to Finished.
type Annotator struct {
	logger    *slog.Logger
	state     State
	captioner Captioner
}

// NewAnnotator returns an annotator in the Loading state.
func NewAnnotator(logger *slog.Logger) *Annotator {
	return &Annotator{logger: logging.NewComponentLogger(logger, stageName), state: StateLoading}
}

// SetLogger replaces the annotator logger.
func (a *Annotator) SetLogger(logger *slog.Logger) {
	a.logger = logging.NewComponentLogger(logger, stageName)
}

// State reports the current lifecycle state.
func (a *Annotator) State() State {
	return a.state
}

// Load acquires the captioner. Any failure is fatal for the run.
func (a *Annotator) Load(ctx context.Context, load LoadFunc) error {
	if a.state != StateLoading {
		return fmt.Errorf("captions: load called in state %s", a.state)
	}
	started := time.Now()
	captioner, err := load(ctx)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "load model", "", err)
	}
	a.captioner = captioner
	a.transition(StateRunning)
	a.logger.Info("caption model ready", logging.Duration("load_time", time.Since(started).Round(time.Millisecond)))
	return nil
}

// Close releases the captioner if it holds resources.
func (a *Annotator) Close() error {
	if closer, ok := a.captioner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Run captions every matching image in opts.InputDir, sorted by name. Images
// that fail to decode or caption are logged and left out of the store. If ctx
// is canceled the run stops and no output is written.
func (a *Annotator) Run(ctx context.Context, opts Options) (*Store, Result, error) {
	var result Result
	if a.state != StateRunning || a.captioner == nil {
		return nil, result, fmt.Errorf("captions: run called in state %s", a.state)
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = config.DefaultImageExtensions
	}
	if err := fileutil.RequireDir(opts.InputDir); err != nil {
		return nil, result, services.Wrap(services.ErrNotFound, stageName, "list input", opts.InputDir, err)
	}
	names, err := fileutil.ListFiles(opts.InputDir, exts)
	if err != nil {
		return nil, result, services.Wrap(services.ErrValidation, stageName, "list input", opts.InputDir, err)
	}
	result.Total = len(names)

	logger := logging.WithContext(ctx, a.logger)
	logger.Info("captioning images", logging.Int("images", len(names)))

	store := NewStore()
	sampler := logging.NewProgressSampler(10)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, result, err
		}
		itemCtx := services.WithItem(ctx, name)
		itemLogger := logging.WithContext(itemCtx, a.logger)
		var caption string
		err := validName(name)
		if err == nil {
			caption, err = a.captionOne(itemCtx, filepath.Join(opts.InputDir, name), opts.ItemTimeout)
		}
		if err == nil {
			err = store.Set(name, caption)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, result, ctxErr
			}
			result.Skipped = append(result.Skipped, services.SkippedItem{Name: name, Reason: err.Error()})
			logging.WarnWithContext(itemLogger, "caption skipped", "caption_skipped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "image has no entry in the caption file"),
			)
		} else {
			result.Captioned++
			itemLogger.Debug("image captioned", logging.String("caption", caption))
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(names))
		}
		if sampler.ShouldLog(i+1, len(names)) {
			logger.Info("captioning progress",
				logging.Int("done", i+1),
				logging.Int("total", len(names)),
				logging.Int("skipped", len(result.Skipped)),
			)
		}
	}

	if err := store.Save(opts.OutputFile); err != nil {
		return store, result, services.Wrap(services.ErrValidation, stageName, "write output", opts.OutputFile, err)
	}
	a.transition(StateFinished)
	return store, result, nil
}

func (a *Annotator) transition(next State) {
	a.logger.Debug("annotator state", logging.String("from", a.state.String()), logging.String("to", next.String()))
	a.state = next
}

func (a *Annotator) captionOne(ctx context.Context, path string, timeout time.Duration) (string, error) {
	img, _, err := imageio.Load(path)
	if err != nil {
		return "", err
	}
	rgb := imageio.ToRGB(img)

	itemCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := a.captioner.Caption(itemCtx, rgb)
		done <- outcome{text: text, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	// A captioner that ignores itemCtx keeps running after a timeout; the
	// buffered channel lets that goroutine exit whenever it returns.
	case <-itemCtx.Done():
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, stageName, "caption", fmt.Sprintf("no caption after %s", timeout), itemCtx.Err())
		}
		return "", itemCtx.Err()
	}
	if res.err != nil {
		return "", res.err
	}
	caption := textutil.NormalizeCaption(res.text)
	if caption == "" {
		return "", ErrEmptyCaption
	}
	return caption, nil
}
