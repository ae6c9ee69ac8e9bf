package runlog_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"vlmprep/internal/runlog"
	"vlmprep/internal/services"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBeginFinishRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Begin(ctx, runlog.Run{
		ID:        "run-1",
		Stage:     "captions",
		Input:     "/data/frames",
		Output:    "/data/captions.json",
		StartedAt: started,
	}); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	running, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if running.Status != runlog.StatusRunning || !running.FinishedAt.IsZero() {
		t.Fatalf("unexpected in-flight run: %+v", running)
	}

	skipped := []services.SkippedItem{
		{Name: "b.png", Reason: "decode error"},
		{Name: "a.png", Reason: "timeout"},
	}
	if err := store.RecordSkipped(ctx, "run-1", skipped); err != nil {
		t.Fatalf("RecordSkipped returned error: %v", err)
	}
	if err := store.Finish(ctx, "run-1", runlog.Completion{
		Status:     services.OutcomeSucceeded,
		Processed:  8,
		Skipped:    2,
		FinishedAt: started.Add(90 * time.Second),
	}); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}

	run, err := store.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if run.Stage != "captions" || run.Input != "/data/frames" || run.Output != "/data/captions.json" {
		t.Fatalf("unexpected run fields: %+v", run)
	}
	if run.Status != services.OutcomeSucceeded || run.Processed != 8 || run.Skipped != 2 {
		t.Fatalf("unexpected run outcome: %+v", run)
	}
	if !run.StartedAt.Equal(started) || run.Duration() != 90*time.Second {
		t.Fatalf("unexpected timing: started=%s duration=%s", run.StartedAt, run.Duration())
	}
	if !reflect.DeepEqual(run.SkippedItems, skipped) {
		t.Fatalf("skipped items = %+v, want %+v", run.SkippedItems, skipped)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		if err := store.Begin(ctx, runlog.Run{ID: id, Stage: "frames", StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Begin(%s) returned error: %v", id, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.Finish(context.Background(), "missing", runlog.Completion{Status: services.OutcomeFailed})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found from Get, got %v", err)
	}
}

func TestBeginRequiresIDAndStage(t *testing.T) {
	store := openStore(t)
	if err := store.Begin(context.Background(), runlog.Run{Stage: "frames"}); err == nil {
		t.Fatal("expected error without id")
	}
	if err := store.Begin(context.Background(), runlog.Run{ID: "x"}); err == nil {
		t.Fatal("expected error without stage")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := store.Begin(context.Background(), runlog.Run{ID: "kept", Stage: "normalize"}); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "kept" {
		t.Fatalf("unexpected runs after reopen: %+v", runs)
	}
}
