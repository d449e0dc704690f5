package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGeneration()
	c.normalizeBrowser()
	c.normalizeOpenRouter()
	c.normalizePrompts()
	c.normalizeMedia()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.images_dir", &c.Paths.ImagesDir},
		{"paths.videos_dir", &c.Paths.VideosDir},
		{"paths.profiles_dir", &c.Paths.ProfilesDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.registry_file", &c.Paths.RegistryFile},
		{"paths.socket_path", &c.Paths.SocketPath},
	}
	for _, field := range fields {
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeGeneration() {
	c.Generation.Mode = strings.ToLower(strings.TrimSpace(c.Generation.Mode))
	if c.Generation.Mode == "" {
		c.Generation.Mode = defaultMode
	}
	if c.Generation.PollIntervalSeconds <= 0 {
		c.Generation.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = defaultTimeoutSeconds
	}
}

func (c *Config) normalizeBrowser() {
	c.Browser.DriverCommand = strings.TrimSpace(c.Browser.DriverCommand)
	c.Browser.AutomationCommand = strings.TrimSpace(c.Browser.AutomationCommand)
	c.Browser.Placement = strings.ToLower(strings.TrimSpace(c.Browser.Placement))
	if c.Browser.Placement == "" {
		c.Browser.Placement = defaultPlacement
	}
}

func (c *Config) normalizeOpenRouter() {
	c.OpenRouter.APIKey = strings.TrimSpace(c.OpenRouter.APIKey)
	c.OpenRouter.Model = strings.TrimSpace(c.OpenRouter.Model)
	c.OpenRouter.BaseURL = strings.TrimSpace(c.OpenRouter.BaseURL)
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = defaultOpenRouterBaseURL
	}
	if c.OpenRouter.TimeoutSeconds <= 0 {
		c.OpenRouter.TimeoutSeconds = defaultOpenRouterTimeoutSeconds
	}
}

func (c *Config) normalizePrompts() {
	c.Prompts.Source = strings.ToLower(strings.TrimSpace(c.Prompts.Source))
	if c.Prompts.Source == "" {
		c.Prompts.Source = defaultPromptSource
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegCommand = strings.TrimSpace(c.Media.FFmpegCommand)
	if c.Media.FFmpegCommand == "" {
		c.Media.FFmpegCommand = defaultFFmpegCommand
	}
	c.Media.FFprobeCommand = strings.TrimSpace(c.Media.FFprobeCommand)
	if c.Media.FFprobeCommand == "" {
		c.Media.FFprobeCommand = defaultFFprobeCommand
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
