package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PhucHuwu/Imagine-IV/internal/run"
)

var (
	// ErrPromptGeneration marks malformed output or transport failure from the
	// prompt generation service, including rate-limit responses.
	ErrPromptGeneration = errors.New("prompt generation error")
	// ErrTimeout marks an external operation that never signalled readiness.
	ErrTimeout = errors.New("timeout")
	// ErrUIFailure marks a generation failure explicitly reported by the web UI.
	ErrUIFailure = errors.New("ui failure")
	// ErrMediaTool marks a media tool subprocess that exited non-zero or
	// produced no output file.
	ErrMediaTool = errors.New("media tool error")
	// ErrInsufficientPrompts marks a manual prompt list that lacks the
	// required shape for the requested mode.
	ErrInsufficientPrompts = errors.New("insufficient prompts")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later skip classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUIFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ClassifySkip maps a stage error to the skip kind the ledger records when an
// item is abandoned.
func ClassifySkip(err error) run.SkipKind {
	switch {
	case errors.Is(err, ErrPromptGeneration):
		return run.SkipPromptGeneration
	case errors.Is(err, ErrTimeout):
		return run.SkipTimeout
	case errors.Is(err, ErrUIFailure):
		return run.SkipUIFailure
	case errors.Is(err, ErrMediaTool):
		return run.SkipMediaTool
	case errors.Is(err, ErrInsufficientPrompts):
		return run.SkipInsufficientPrompts
	case errors.Is(err, context.Canceled):
		return run.SkipCancelled
	default:
		return run.SkipInternal
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
