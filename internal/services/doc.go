// Package services defines shared utilities consumed by the pipeline engine
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, and worker indices
//     for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the skip kinds the run ledger records.
//
// Use these helpers when wiring new stage logic so failure classification and
// observability stay uniform across the pipeline.
package services
