package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vlmprep/internal/services"
)

// StatusRunning marks a run that has begun but not finished. A run left in
// this state was interrupted before Finish could record an outcome.
const StatusRunning = "running"

// Run is one recorded stage invocation.
type Run struct {
	ID         string
	Stage      string
	Input      string
	Output     string
	Status     string
	Processed  int
	Skipped    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
	// SkippedItems is populated by Get only.
	SkippedItems []services.SkippedItem
}

// Duration returns the wall time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Completion describes how a run ended.
type Completion struct {
	Status     string
	Processed  int
	Skipped    int
	Error      string
	FinishedAt time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("open run log: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run log directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records the start of a run. ID and Stage are required.
func (s *Store) Begin(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" || strings.TrimSpace(run.Stage) == "" {
		return errors.New("begin run: id and stage are required")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, stage, input, output, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Stage,
		nullableString(run.Input),
		nullableString(run.Output),
		StatusRunning,
		formatTime(started),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records the outcome of a run started with Begin.
func (s *Store) Finish(ctx context.Context, id string, c Completion) error {
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	status := strings.TrimSpace(c.Status)
	if status == "" {
		status = services.OutcomeSucceeded
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, processed = ?, skipped = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status,
		c.Processed,
		c.Skipped,
		nullableString(c.Error),
		formatTime(finished),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, services.ErrNotFound)
	}
	return nil
}

// RecordSkipped stores the items a run skipped, in order.
func (s *Store) RecordSkipped(ctx context.Context, id string, items []services.SkippedItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin skipped tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO skipped_items (run_id, position, name, reason) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare skipped insert: %w", err)
	}
	defer stmt.Close()
	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, id, i, item.Name, item.Reason); err != nil {
			return fmt.Errorf("insert skipped item %q: %w", item.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit skipped items: %w", err)
	}
	return nil
}

const runColumns = "id, stage, input, output, status, processed, skipped, error_message, started_at, finished_at"

// List returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Get fetches one run with its skipped items. Unknown ids return ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, reason FROM skipped_items WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list skipped items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item services.SkippedItem
		if err := rows.Scan(&item.Name, &item.Reason); err != nil {
			return nil, fmt.Errorf("scan skipped item: %w", err)
		}
		run.SkippedItems = append(run.SkippedItems, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate skipped items: %w", err)
	}
	return &run, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		input       sql.NullString
		output      sql.NullString
		errorMsg    sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Stage,
		&input,
		&output,
		&run.Status,
		&run.Processed,
		&run.Skipped,
		&errorMsg,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.Input = input.String
	run.Output = output.String
	run.Error = errorMsg.String
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	return run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
