package prompts

import (
	"fmt"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
)

// NewFromConfig selects the prompt source the configuration names.
func NewFromConfig(cfg *config.Config) (Source, error) {
	switch cfg.Prompts.Source {
	case "generated":
		return NewGenerator(cfg.OpenRouter), nil
	case "manual":
		return LoadManualList(cfg.Prompts.ManualFile)
	default:
		return nil, fmt.Errorf("unknown prompt source %q", cfg.Prompts.Source)
	}
}
