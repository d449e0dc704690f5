// Package workflow runs the worker pool: a fixed number of workers, each
// bound to its own browser session, draining a shared countdown of items
// through the pipeline engine.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/PhucHuwu/Imagine-IV/internal/artifacts"
	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/imagine"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/media"
	"github.com/PhucHuwu/Imagine-IV/internal/prompts"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
)

// Session is the slice of the browser session the pool needs.
type Session interface {
	ProfileDir() string
	AwaitLogin(ctx context.Context) error
	ConfirmLogin()
	Release()
}

// AcquireFunc launches the browser session for one worker.
type AcquireFunc func(ctx context.Context, workerID int) (Session, error)

// Target describes one batch request.
type Target struct {
	Mode  run.Mode
	Count int
}

// Manager owns the worker pool lifecycle for one run at a time.
type Manager struct {
	cfg       *config.Config
	store     *run.Store
	acquire   AcquireFunc
	uiFactory imagine.Factory
	source    prompts.Source
	stitcher  media.Stitcher
	artifacts *artifacts.Store
	logger    *slog.Logger

	delay time.Duration

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	runID     string
	target    Target
	startedAt time.Time
	sessions  map[int]Session
	workers   map[int]WorkerStatus

	remaining atomic.Int64
	itemSeq   atomic.Uint64
	doneCount atomic.Int64
	skipCount atomic.Int64
	skipKinds map[run.SkipKind]int
	stamp     string
}

// Params collects the manager's collaborators.
type Params struct {
	Config    *config.Config
	Store     *run.Store
	Acquire   AcquireFunc
	UIFactory imagine.Factory
	Source    prompts.Source
	Stitcher  media.Stitcher
	Artifacts *artifacts.Store
	Logger    *slog.Logger
}

// NewManager constructs a manager. It does not start any workers.
func NewManager(params Params) *Manager {
	logger := params.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:       params.Config,
		store:     params.Store,
		acquire:   params.Acquire,
		uiFactory: params.UIFactory,
		source:    params.Source,
		stitcher:  params.Stitcher,
		artifacts: params.Artifacts,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		delay:     time.Duration(params.Config.Generation.DelaySeconds) * time.Second,
		sessions:  make(map[int]Session),
		workers:   make(map[int]WorkerStatus),
		skipKinds: make(map[run.SkipKind]int),
	}
}

// Start launches the worker pool for the target batch. It returns once every
// worker goroutine is spawned; Wait joins them.
func (m *Manager) Start(ctx context.Context, target Target) error {
	if target.Count < 1 {
		return errors.New("target count must be at least 1")
	}
	if _, err := run.ParseMode(string(target.Mode)); err != nil {
		return err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("a run is already active")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.runID = uuid.NewString()
	m.target = target
	m.startedAt = time.Now()
	m.stamp = m.startedAt.Format("02-01_15-04")
	m.sessions = make(map[int]Session)
	m.workers = make(map[int]WorkerStatus)
	m.skipKinds = make(map[run.SkipKind]int)
	m.mu.Unlock()

	m.remaining.Store(int64(target.Count))
	m.itemSeq.Store(0)
	m.doneCount.Store(0)
	m.skipCount.Store(0)

	workerCount := m.cfg.Generation.ThreadCount
	if workerCount > target.Count {
		workerCount = target.Count
	}

	m.logger.InfoContext(ctx, "run started",
		logging.String(logging.FieldRunID, m.runID),
		logging.String("mode", string(target.Mode)),
		logging.Int("count", target.Count),
		logging.Int("workers", workerCount))

	for workerID := 1; workerID <= workerCount; workerID++ {
		m.setWorkerStatus(workerID, WorkerStatus{WorkerID: workerID, State: "starting"})
		m.wg.Add(1)
		go func(id int) {
			defer m.wg.Done()
			m.runWorker(runCtx, id)
		}(workerID)
	}

	go func() {
		m.wg.Wait()
		m.finish()
	}()
	return nil
}

// Stop cancels the active run. In-flight items record a cancelled skip; Wait
// blocks until every worker has released its session.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until all workers have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// ConfirmLogin unblocks the given worker's manual login gate.
func (m *Manager) ConfirmLogin(workerID int) error {
	m.mu.RLock()
	session, ok := m.sessions[workerID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no active session for worker %d", workerID)
	}
	session.ConfirmLogin()
	return nil
}

// claim reserves one unit of remaining work. The counter never goes below
// zero even with every worker racing on it.
func (m *Manager) claim() bool {
	for {
		current := m.remaining.Load()
		if current <= 0 {
			return false
		}
		if m.remaining.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

// nextPublicID issues the run-wide item identifier.
func (m *Manager) nextPublicID() string {
	seq := m.itemSeq.Add(1)
	return fmt.Sprintf("%s_%03d", m.stamp, seq)
}

func (m *Manager) registerSession(workerID int, session Session) {
	m.mu.Lock()
	m.sessions[workerID] = session
	m.mu.Unlock()
}

func (m *Manager) dropSession(workerID int) {
	m.mu.Lock()
	delete(m.sessions, workerID)
	m.mu.Unlock()
}

// recordOutcome folds one finished item into the pool tallies backing Status.
func (m *Manager) recordOutcome(item *run.Item) {
	switch item.Status {
	case run.StatusDone:
		m.doneCount.Add(1)
	case run.StatusSkipped:
		m.skipCount.Add(1)
		m.mu.Lock()
		m.skipKinds[item.SkipKind]++
		m.mu.Unlock()
	}
}

func (m *Manager) finish() {
	m.mu.Lock()
	m.running = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	runID := m.runID
	m.mu.Unlock()

	// The durable ledger is the record of what actually happened; summarize
	// from it rather than from the in-memory tallies.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := m.store.Summarize(ctx, runID)
	if err != nil {
		m.logger.Warn("summarize run", logging.String(logging.FieldRunID, runID), logging.Error(err))
		return
	}
	m.logger.Info("run finished",
		logging.String(logging.FieldRunID, runID),
		logging.Int("done", summary.Done),
		logging.Int("skipped", summary.Skipped))
}
