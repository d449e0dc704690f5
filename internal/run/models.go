package run

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how far the pipeline advances for each item.
type Mode string

const (
	ModeImage   Mode = "image"
	ModeVideo6  Mode = "video6s"
	ModeVideo12 Mode = "video12s"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeImage:
		return ModeImage, nil
	case ModeVideo6:
		return ModeVideo6, nil
	case ModeVideo12:
		return ModeVideo12, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected image, video6s, or video12s)", value)
	}
}

// Status represents the lifecycle of a pipeline item.
//
// Items advance strictly forward; any status may jump to StatusSkipped, which
// is terminal alongside StatusDone. There is no retry transition.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPromptReady       Status = "prompt_ready"
	StatusImageReady        Status = "image_ready"
	StatusSegment1Rendering Status = "segment1_rendering"
	StatusSegment1Ready     Status = "segment1_ready"
	StatusFrameExtracted    Status = "frame_extracted"
	StatusSegment2Rendering Status = "segment2_rendering"
	StatusSegment2Ready     Status = "segment2_ready"
	StatusStitched          Status = "stitched"
	StatusDone              Status = "done"
	StatusSkipped           Status = "skipped"
)

var allStatuses = []Status{
	StatusPending,
	StatusPromptReady,
	StatusImageReady,
	StatusSegment1Rendering,
	StatusSegment1Ready,
	StatusFrameExtracted,
	StatusSegment2Rendering,
	StatusSegment2Ready,
	StatusStitched,
	StatusDone,
	StatusSkipped,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ValidStatus reports whether the given status is known.
func ValidStatus(status Status) bool {
	_, ok := statusSet[status]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusSkipped
}

// SkipKind classifies why an item was abandoned.
type SkipKind string

const (
	SkipPromptGeneration    SkipKind = "prompt_generation"
	SkipTimeout             SkipKind = "timeout"
	SkipUIFailure           SkipKind = "ui_failure"
	SkipMediaTool           SkipKind = "media_tool"
	SkipInsufficientPrompts SkipKind = "insufficient_prompts"
	SkipCancelled           SkipKind = "cancelled"
	SkipInternal            SkipKind = "internal"
)

// Artifact map keys used by the pipeline engine.
const (
	ArtifactImage    = "image"
	ArtifactSegment1 = "segment1"
	ArtifactFrame    = "frame"
	ArtifactSegment2 = "segment2"
	ArtifactFinal    = "final"
)

// Item represents one unit of work persisted in the run ledger.
//
// An item is mutated only by the worker that owns it; once Status is terminal
// it is never revisited.
type Item struct {
	ID           int64
	PublicID     string
	RunID        string
	WorkerID     int
	Mode         Mode
	Status       Status
	Artifacts    map[string]string
	SkipKind     SkipKind
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetArtifact records a produced file path under the given stage key.
func (i *Item) SetArtifact(key, path string) {
	if i.Artifacts == nil {
		i.Artifacts = make(map[string]string, 4)
	}
	i.Artifacts[key] = path
}

// Artifact returns the recorded path for a stage key, if any.
func (i *Item) Artifact(key string) (string, bool) {
	path, ok := i.Artifacts[key]
	return path, ok
}

// SetSkipped marks the item as terminally abandoned with the given kind.
func (i *Item) SetSkipped(kind SkipKind, message string) {
	i.Status = StatusSkipped
	i.SkipKind = kind
	i.ErrorMessage = strings.TrimSpace(message)
}

// Summary aggregates item counts for one run.
type Summary struct {
	Total   int
	Done    int
	Skipped int
	Active  int
	ByKind  map[SkipKind]int
}
