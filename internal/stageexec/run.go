package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vlmprep/internal/fileutil"
	"vlmprep/internal/logging"
	"vlmprep/internal/metrics"
	"vlmprep/internal/runlog"
	"vlmprep/internal/services"
)

// Summary is what a stage reports back when it returns.
type Summary struct {
	Processed int
	Skipped   []services.SkippedItem
	// Attrs are appended to the "stage completed" log line.
	Attrs []logging.Attr
}

// ExecuteFunc runs the stage body with a logger carrying stage and run fields.
type ExecuteFunc func(ctx context.Context, logger *slog.Logger) (Summary, error)

// Options controls stage execution and run bookkeeping.
type Options struct {
	Logger    *slog.Logger
	StageName string
	Input     string
	Output    string
	// LockDir is created if needed and locked for the duration of the run.
	// Empty disables locking.
	LockDir string
	// RunLog and Metrics are optional.
	RunLog          *runlog.Store
	Metrics         *metrics.Recorder
	MetricsTextfile string
	Execute         ExecuteFunc
	// Now is used for timestamps; nil means time.Now.
	Now func() time.Time
}

// Result is the bookkeeping view of a finished run.
type Result struct {
	RunID    string
	Outcome  string
	Summary  Summary
	Duration time.Duration
}

// Run executes a stage under an output lock, records it in the run log and
// metrics, and logs the lifecycle. The stage error is returned unchanged.
func Run(ctx context.Context, opts Options) (Result, error) {
	var result Result
	if opts.Execute == nil {
		return result, fmt.Errorf("stage body unavailable: %s", opts.StageName)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	result.RunID = uuid.NewString()
	stageCtx := services.WithRunID(services.WithStage(ctx, opts.StageName), result.RunID)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	if dir := strings.TrimSpace(opts.LockDir); dir != "" {
		if err := fileutil.EnsureDir(dir); err != nil {
			return result, services.Wrap(services.ErrValidation, opts.StageName, "prepare output", dir, err)
		}
		lock, err := fileutil.LockDir(dir)
		if err != nil {
			hint := "check directory permissions"
			if errors.Is(err, fileutil.ErrLocked) {
				hint = "wait for the other run to finish or choose another output"
			}
			logging.ErrorWithContext(stageLogger, "output locked", "stage_locked",
				logging.String("lock", dir),
				logging.String(logging.FieldErrorHint, hint),
				logging.Error(err),
			)
			return result, services.Wrap(services.ErrValidation, opts.StageName, "lock output", dir, err)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				stageLogger.Warn("release output lock failed", logging.Error(err))
			}
		}()
	}

	started := now()
	persistCtx := context.WithoutCancel(stageCtx)
	if opts.RunLog != nil {
		if err := opts.RunLog.Begin(persistCtx, runlog.Run{
			ID:        result.RunID,
			Stage:     opts.StageName,
			Input:     opts.Input,
			Output:    opts.Output,
			StartedAt: started,
		}); err != nil {
			logging.WarnWithContext(stageLogger, "run log unavailable", "runlog_begin_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run is missing from `vlmprep runs`"),
			)
		}
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("input", opts.Input),
		logging.String("output", opts.Output),
	)

	summary, stageErr := opts.Execute(stageCtx, stageLogger)
	finished := now()
	result.Summary = summary
	result.Duration = finished.Sub(started)
	result.Outcome = services.Outcome(stageErr)

	errMessage := ""
	if stageErr != nil {
		errMessage = strings.TrimSpace(stageErr.Error())
	}
	if opts.RunLog != nil {
		if err := opts.RunLog.RecordSkipped(persistCtx, result.RunID, summary.Skipped); err != nil {
			stageLogger.Warn("persist skipped items failed", logging.Error(err))
		}
		if err := opts.RunLog.Finish(persistCtx, result.RunID, runlog.Completion{
			Status:     result.Outcome,
			Processed:  summary.Processed,
			Skipped:    len(summary.Skipped),
			Error:      errMessage,
			FinishedAt: finished,
		}); err != nil {
			stageLogger.Warn("persist run outcome failed", logging.Error(err))
		}
	}
	if opts.Metrics != nil {
		opts.Metrics.Observe(metrics.Observation{
			Stage:     opts.StageName,
			Outcome:   result.Outcome,
			Processed: summary.Processed,
			Skipped:   len(summary.Skipped),
			Duration:  result.Duration,
			Finished:  finished,
		})
		if err := opts.Metrics.WriteTextfile(opts.MetricsTextfile); err != nil {
			stageLogger.Warn("metrics export failed", logging.Error(err))
		}
	}

	if stageErr != nil {
		stageLogger.Error(
			"stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("outcome", result.Outcome),
			logging.Int("processed", summary.Processed),
			logging.Duration("duration", result.Duration),
			logging.Error(stageErr),
		)
		return result, stageErr
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("processed", summary.Processed),
		logging.Int("skipped", len(summary.Skipped)),
		logging.Duration("duration", result.Duration),
	}
	attrs = append(attrs, summary.Attrs...)
	stageLogger.Info("stage completed", logging.Args(attrs...)...)
	return result, nil
}
