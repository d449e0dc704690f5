// Package daemon wraps the worker pool in a long-lived process: it enforces
// single-instance execution, reconciles leftover driver processes at startup,
// and exposes run control to the IPC layer.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/deps"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/procreg"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/workflow"
)

// Daemon coordinates the run lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	store    *run.Store
	manager  *workflow.Manager
	registry *procreg.Registry
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Pool         workflow.StatusSummary
	Dependencies []deps.Status
	DBPath       string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *run.Store, manager *workflow.Manager, registry *procreg.Registry, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || registry == nil {
		return nil, errors.New("daemon requires config, store, manager, and registry")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "imagined.lock")
	return &Daemon{
		cfg:      cfg,
		store:    store,
		manager:  manager,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock and clears out driver processes a
// previous daemon left behind.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another daemon instance is already running")
	}

	expected := filepath.Base(d.cfg.Browser.DriverCommand)
	killed, err := d.registry.Reconcile(d.logger, expected)
	if err != nil {
		d.logger.Warn("registry reconcile", logging.Error(err))
	} else if killed > 0 {
		d.logger.Info("cleaned leftover driver processes", logging.Int("killed", killed))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running.Store(true)
	d.logger.InfoContext(ctx, "daemon started", logging.String("lock", d.lockPath))
	return nil
}

// StartRun launches a batch through the worker pool.
func (d *Daemon) StartRun(target workflow.Target) error {
	if !d.running.Load() {
		return errors.New("daemon is not running")
	}
	return d.manager.Start(d.ctx, target)
}

// StopRun cancels the active batch, if any, and waits for workers to settle.
func (d *Daemon) StopRun() {
	d.manager.Stop()
	d.manager.Wait()
}

// ConfirmLogin clears one worker's manual login gate.
func (d *Daemon) ConfirmLogin(workerID int) error {
	return d.manager.ConfirmLogin(workerID)
}

// Status reports the daemon and pool state.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Pool:         d.manager.Status(),
		Dependencies: deps.CheckBinaries(deps.ForConfig(d.cfg)),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// Stop halts any active run, clears the registry, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.manager.Stop()
	d.manager.Wait()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil

	// Sessions release themselves on the way down; anything still recorded
	// here is a driver that outlived its worker.
	if err := d.registry.Clear(); err != nil {
		d.logger.Warn("clear process registry", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
