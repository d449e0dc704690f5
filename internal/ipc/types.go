package ipc

import "time"

// StartRunRequest asks the daemon to begin a batch.
type StartRunRequest struct {
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}

// StartRunResponse reports whether the batch was accepted.
type StartRunResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRunRequest asks the daemon to cancel the active batch.
type StopRunRequest struct{}

// StopRunResponse acknowledges the cancellation.
type StopRunResponse struct {
	Stopped bool `json:"stopped"`
}

// ConfirmLoginRequest clears one worker's manual login gate.
type ConfirmLoginRequest struct {
	Worker int `json:"worker"`
}

// ConfirmLoginResponse reports whether the worker was found.
type ConfirmLoginResponse struct {
	Confirmed bool   `json:"confirmed"`
	Message   string `json:"message"`
}

// StatusRequest asks for daemon diagnostics.
type StatusRequest struct{}

// WorkerStatus mirrors one worker's snapshot.
type WorkerStatus struct {
	WorkerID int    `json:"worker_id"`
	State    string `json:"state"`
	ItemID   string `json:"item_id,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// DependencyStatus mirrors one external binary check.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StatusResponse reports daemon and pool state.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	RunActive    bool               `json:"run_active"`
	RunID        string             `json:"run_id,omitempty"`
	Mode         string             `json:"mode,omitempty"`
	Requested    int                `json:"requested"`
	Remaining    int                `json:"remaining"`
	Done         int                `json:"done"`
	Skipped      int                `json:"skipped"`
	SkippedKinds map[string]int     `json:"skipped_kinds,omitempty"`
	StartedAt    time.Time          `json:"started_at,omitempty"`
	Workers      []WorkerStatus     `json:"workers,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
	DBPath       string             `json:"db_path"`
	LockPath     string             `json:"lock_path"`
}

// LogTailRequest fetches log events after a sequence number. Wait blocks
// until new events arrive or the timeout elapses.
type LogTailRequest struct {
	Since uint64 `json:"since"`
	Limit int    `json:"limit"`
	Wait  bool   `json:"wait"`
}

// LogEvent is one structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	WorkerID  int               `json:"worker_id,omitempty"`
	ItemID    string            `json:"item_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogTailResponse carries fetched log events.
type LogTailResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
