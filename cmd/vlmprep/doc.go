// Package main hosts the vlmprep CLI entrypoint and command graph.
//
// Each pipeline stage is one command: extract-frames, normalize-images and
// generate-captions. The commands resolve configuration (flags over config
// file over defaults), build the structured logger and hand the stage body to
// stageexec, which owns locking, the run log and metrics. Support commands
// cover configuration scaffolding (config), run history (runs) and
// dependency checks (doctor).
//
// Keep this package lean: stage behavior belongs in the internal packages and
// is surfaced here through flags.
package main
