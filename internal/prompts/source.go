// Package prompts supplies the text prompts each pipeline item consumes. A
// set carries the image prompt plus the two video continuation prompts, and a
// Source hands out one complete set per item.
package prompts

import (
	"context"
	"strings"

	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

// Set is one coherent group of prompts. Video2 extends the motion Video1
// started, so the three fields are generated or authored together.
type Set struct {
	Image  string `json:"image_prompt" toml:"image"`
	Video1 string `json:"video1_prompt" toml:"video1"`
	Video2 string `json:"video2_prompt" toml:"video2"`
}

// Validate checks that the set carries every prompt the mode consumes.
func (s Set) Validate(mode run.Mode) error {
	if strings.TrimSpace(s.Image) == "" {
		return services.Wrap(services.ErrInsufficientPrompts, "prompts", "validate", "image prompt is empty", nil)
	}
	switch mode {
	case run.ModeImage:
		return nil
	case run.ModeVideo6:
		if strings.TrimSpace(s.Video1) == "" {
			return services.Wrap(services.ErrInsufficientPrompts, "prompts", "validate", "video1 prompt is empty", nil)
		}
		return nil
	case run.ModeVideo12:
		if strings.TrimSpace(s.Video1) == "" {
			return services.Wrap(services.ErrInsufficientPrompts, "prompts", "validate", "video1 prompt is empty", nil)
		}
		if strings.TrimSpace(s.Video2) == "" {
			return services.Wrap(services.ErrInsufficientPrompts, "prompts", "validate", "video2 prompt is empty", nil)
		}
		return nil
	default:
		return services.Wrap(services.ErrInsufficientPrompts, "prompts", "validate", "unknown mode "+string(mode), nil)
	}
}

// Source produces one prompt set per call. Implementations must be safe for
// concurrent use; every worker draws from the same source.
type Source interface {
	Next(ctx context.Context, mode run.Mode) (Set, error)
}
