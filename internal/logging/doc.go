// Package logging assembles structured slog loggers and formatting helpers used
// across the vlmprep stages.
//
// It owns the console handlers (colorized tint output on terminals, a plain
// key=value renderer elsewhere), the JSON handler used for log files and
// machine consumption, and a tee handler that writes to both. Context
// helpers tag lines with the stage, run identifier, and current item so stage
// code does not repeat them. A no-op logger is provided for tests.
package logging
