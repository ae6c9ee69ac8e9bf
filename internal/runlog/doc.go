// Package runlog persists the history of stage invocations in SQLite.
//
// Each command run becomes one row in runs, opened with Begin and closed with
// Finish. Items a stage skipped are stored alongside so `vlmprep runs` can
// explain partial results after the console output is gone. The database
// lives at <state_dir>/runs.db and uses WAL mode so a concurrent reader never
// blocks a running stage.
package runlog
