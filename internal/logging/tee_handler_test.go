package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := TeeHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRoutesByLevel(t *testing.T) {
	var console, file bytes.Buffer
	h := TeeHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled when any handler accepts it")
	}

	logger.Debug("decoded frame")
	logger.Warn("decode stopped early")

	if strings.Contains(console.String(), "decoded frame") {
		t.Fatalf("console handler should drop debug records, got %q", console.String())
	}
	if !strings.Contains(console.String(), "decode stopped early") {
		t.Fatalf("console handler missing warning, got %q", console.String())
	}
	for _, msg := range []string{"decoded frame", "decode stopped early"} {
		if !strings.Contains(file.String(), msg) {
			t.Fatalf("file handler missing %q, got %q", msg, file.String())
		}
	}
}

func TestTeeHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	h := TeeHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	logger := slog.New(h).With("stage", "captions").WithGroup("model")
	logger.Info("loaded", "device", "cpu")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		out := buf.String()
		if !strings.Contains(out, `"stage":"captions"`) {
			t.Fatalf("expected stage attr, got %q", out)
		}
		if !strings.Contains(out, `"model":{"device":"cpu"}`) {
			t.Fatalf("expected grouped device attr, got %q", out)
		}
	}
}
