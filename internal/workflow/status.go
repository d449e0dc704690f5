package workflow

import (
	"sort"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/run"
)

// WorkerStatus is a point-in-time snapshot of one worker.
type WorkerStatus struct {
	WorkerID int
	State    string
	ItemID   string
	Detail   string
}

// StatusSummary represents lightweight pool diagnostics.
type StatusSummary struct {
	Running   bool
	RunID     string
	Mode      run.Mode
	Requested int
	Remaining int
	StartedAt time.Time
	Workers   []WorkerStatus
	Items     run.Summary
}

// Status returns the latest pool information. It reads atomics and copies
// the worker snapshot; the run ledger is never queried here.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		RunID:     m.runID,
		Mode:      m.target.Mode,
		Requested: m.target.Count,
		StartedAt: m.startedAt,
	}
	workers := make([]WorkerStatus, 0, len(m.workers))
	for _, status := range m.workers {
		workers = append(workers, status)
	}
	byKind := make(map[run.SkipKind]int, len(m.skipKinds))
	for kind, count := range m.skipKinds {
		byKind[kind] = count
	}
	m.mu.RUnlock()

	sort.Slice(workers, func(i, j int) bool { return workers[i].WorkerID < workers[j].WorkerID })
	summary.Workers = workers
	summary.Remaining = int(m.remaining.Load())

	done := int(m.doneCount.Load())
	skipped := int(m.skipCount.Load())
	issued := int(m.itemSeq.Load())
	summary.Items = run.Summary{
		Total:   issued,
		Done:    done,
		Skipped: skipped,
		Active:  issued - done - skipped,
		ByKind:  byKind,
	}
	return summary
}

func (m *Manager) setWorkerStatus(workerID int, status WorkerStatus) {
	m.mu.Lock()
	m.workers[workerID] = status
	m.mu.Unlock()
}
