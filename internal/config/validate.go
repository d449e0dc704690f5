package config

import (
	"errors"
	"fmt"
)

var validPlacements = map[string]struct{}{
	"left":    {},
	"right":   {},
	"compact": {},
}

var validModes = map[string]struct{}{
	"image":    {},
	"video6s":  {},
	"video12s": {},
}

var validPromptSources = map[string]struct{}{
	"generated": {},
	"manual":    {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateBrowser(); err != nil {
		return err
	}
	if err := c.validatePrompts(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.ThreadCount < 1 || c.Generation.ThreadCount > 20 {
		return fmt.Errorf("generation.thread_count must be between 1 and 20, got %d", c.Generation.ThreadCount)
	}
	if c.Generation.BatchSize < 1 {
		return errors.New("generation.batch_size must be at least 1")
	}
	if c.Generation.ImagesPerItem < 1 {
		return errors.New("generation.images_per_item must be at least 1")
	}
	if _, ok := validModes[c.Generation.Mode]; !ok {
		return fmt.Errorf("generation.mode must be one of image, video6s, video12s; got %q", c.Generation.Mode)
	}
	if c.Generation.PollIntervalSeconds >= c.Generation.TimeoutSeconds {
		return fmt.Errorf(
			"generation.poll_interval_seconds (%d) must be shorter than generation.timeout_seconds (%d)",
			c.Generation.PollIntervalSeconds, c.Generation.TimeoutSeconds,
		)
	}
	return nil
}

func (c *Config) validateBrowser() error {
	if c.Browser.DriverCommand == "" {
		return errors.New("browser.driver_command must be set")
	}
	if c.Browser.AutomationCommand == "" {
		return errors.New("browser.automation_command must be set")
	}
	if _, ok := validPlacements[c.Browser.Placement]; !ok {
		return fmt.Errorf("browser.placement must be one of left, right, compact; got %q", c.Browser.Placement)
	}
	return nil
}

func (c *Config) validatePrompts() error {
	if _, ok := validPromptSources[c.Prompts.Source]; !ok {
		return fmt.Errorf("prompts.source must be generated or manual; got %q", c.Prompts.Source)
	}
	switch c.Prompts.Source {
	case "generated":
		if c.OpenRouter.APIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = "~/.config/imagine/config.toml"
			}
			return fmt.Errorf("openrouter.api_key is required for generated prompts. Set OPENROUTER_API_KEY or edit %s (create with 'imagine config init')", defaultPath)
		}
		if c.OpenRouter.Model == "" {
			return errors.New("openrouter.model is required for generated prompts")
		}
	case "manual":
		if c.Prompts.ManualFile == "" {
			return errors.New("prompts.manual_file must be set when prompts.source is manual")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json; got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error; got %q", c.Logging.Level)
	}
	return nil
}
