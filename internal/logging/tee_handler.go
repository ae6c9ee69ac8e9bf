package logging

import (
	"context"
	"log/slog"
)

// teeHandler writes every record to the console handler and the JSON log
// file handler. Each sink keeps its own level.
type teeHandler struct {
	sinks []slog.Handler
}

// TeeHandler combines sinks into one handler. Nil sinks are dropped; a single
// remaining sink is returned as is.
func TeeHandler(sinks ...slog.Handler) slog.Handler {
	kept := make([]slog.Handler, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	switch len(kept) {
	case 0:
		return NoopHandler{}
	case 1:
		return kept[0]
	}
	return &teeHandler{sinks: kept}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	last := len(h.sinks) - 1
	for i, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		// Handlers may retain the record; only the last sink gets the original.
		r := record
		if i < last {
			r = record.Clone()
		}
		if err := sink.Handle(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := &teeHandler{sinks: make([]slog.Handler, len(h.sinks))}
	for i, sink := range h.sinks {
		next.sinks[i] = fn(sink)
	}
	return next
}
