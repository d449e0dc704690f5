package workflow

import (
	"context"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/pipeline"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

// runWorker is the body of one worker goroutine: acquire a session, clear the
// login gate, then drain the shared countdown until it is empty or the run is
// cancelled.
func (m *Manager) runWorker(ctx context.Context, workerID int) {
	ctx = services.WithWorkerID(services.WithRunID(ctx, m.runID), workerID)
	logger := logging.WithContext(ctx, m.logger)

	session, err := m.acquire(ctx, workerID)
	if err != nil {
		logger.Error("session acquire failed", logging.Error(err))
		m.setWorkerStatus(workerID, WorkerStatus{WorkerID: workerID, State: "failed", Detail: err.Error()})
		return
	}
	m.registerSession(workerID, session)
	defer func() {
		session.Release()
		m.dropSession(workerID)
		m.setWorkerStatus(workerID, WorkerStatus{WorkerID: workerID, State: "stopped"})
	}()

	m.setWorkerStatus(workerID, WorkerStatus{WorkerID: workerID, State: "awaiting_login"})
	if err := session.AwaitLogin(ctx); err != nil {
		logger.Warn("login wait aborted", logging.Error(err))
		return
	}

	engine := pipeline.NewEngine(pipeline.Params{
		UI:            m.uiFactory(session.ProfileDir()),
		Source:        m.source,
		Stitcher:      m.stitcher,
		Artifacts:     m.artifacts,
		Ledger:        m.store,
		Logger:        m.logger,
		PollInterval:  time.Duration(m.cfg.Generation.PollIntervalSeconds) * time.Second,
		Timeout:       time.Duration(m.cfg.Generation.TimeoutSeconds) * time.Second,
		ImagesPerItem: m.cfg.Generation.ImagesPerItem,
	})

	for m.claim() {
		if ctx.Err() != nil {
			return
		}
		publicID := m.nextPublicID()
		itemCtx := services.WithItemID(ctx, publicID)
		item, err := m.store.NewItem(itemCtx, m.runID, publicID, workerID, m.target.Mode)
		if err != nil {
			logger.Error("create item", logging.Error(err))
			return
		}

		m.setWorkerStatus(workerID, WorkerStatus{
			WorkerID: workerID,
			State:    "processing",
			ItemID:   publicID,
		})
		if err := engine.Run(itemCtx, item); err != nil {
			logger.Error("item persistence failed", logging.String(logging.FieldItemID, publicID), logging.Error(err))
			return
		}
		m.recordOutcome(item)

		if ctx.Err() != nil {
			return
		}
		if m.delay > 0 {
			m.setWorkerStatus(workerID, WorkerStatus{WorkerID: workerID, State: "delaying"})
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.delay):
			}
		}
	}
	m.setWorkerStatus(workerID, WorkerStatus{WorkerID: workerID, State: "drained"})
}
