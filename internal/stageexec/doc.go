// Package stageexec wraps a stage body with the bookkeeping every command
// shares: a run id, an exclusive lock on the output directory, run log rows,
// metrics and the "stage started/completed/failed" log lines.
package stageexec
