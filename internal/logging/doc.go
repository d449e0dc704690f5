// Package logging assembles structured slog loggers and formatting helpers
// used across the orchestrator.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code can automatically tag
// log lines with worker indices, item IDs, and stage names. The StreamHub is
// the append-only log sink shared by all workers; the IPC log tail reads from
// it and no core behaviour depends on it being consumed.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
