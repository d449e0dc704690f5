// Package procreg tracks the OS process ids of spawned browser drivers in a
// flat on-disk file so crashed runs never leak processes.
//
// The registry is append-only during a run: sessions record their driver pid
// at launch and remove it on release. At startup the daemon reconciles the
// file, terminating any recorded process that is still alive and still runs
// the expected executable, then truncates it. A clean shutdown truncates it
// again. Reconciliation is explicit and idempotent rather than relying on
// finalizers.
package procreg
