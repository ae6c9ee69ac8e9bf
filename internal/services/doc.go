// Package services defines shared utilities consumed by the pipeline stages
// and the model backends.
//
// Key responsibilities:
//   - Context helpers that stamp stage names, run identifiers, and the item
//     being processed for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent run outcomes (failed, invalid, canceled).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
