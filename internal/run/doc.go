// Package run persists pipeline items in SQLite and defines their lifecycle.
//
// The Store records every item a worker pulls from the shared work target:
// its mode, current stage, produced artifact paths, and terminal outcome
// (done or skipped with a classified kind). Items advance strictly forward
// and are never retried; the ledger is a postmortem record, not a scheduler.
//
// Treat this package as the single source of truth for item semantics; when
// adding statuses or fields, update schema.sql and bump schemaVersion.
package run
