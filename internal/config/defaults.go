package config

const (
	defaultImagesDir    = "~/.local/share/imagine/images"
	defaultVideosDir    = "~/.local/share/imagine/videos"
	defaultProfilesDir  = "~/.local/share/imagine/profiles"
	defaultLogDir       = "~/.local/share/imagine/logs"
	defaultRegistryFile = "~/.local/share/imagine/chrome_pids.txt"
	defaultSocketPath   = "~/.local/share/imagine/imagined.sock"

	defaultThreadCount         = 1
	defaultBatchSize           = 10
	defaultImagesPerItem       = 4
	defaultMode                = "video12s"
	defaultPollIntervalSeconds = 2
	defaultTimeoutSeconds      = 180
	defaultDelaySeconds        = 2

	defaultDriverCommand     = "chromium"
	defaultAutomationCommand = "imagine-automate"
	defaultPlacement         = "left"
	defaultRightOffsetX      = 1920

	defaultOpenRouterBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterReferer        = "https://github.com/PhucHuwu/Imagine-IV"
	defaultOpenRouterTitle          = "Imagine IV Prompt Generator"
	defaultOpenRouterTimeoutSeconds = 30

	defaultPromptSource = "generated"

	defaultFFmpegCommand  = "ffmpeg"
	defaultFFprobeCommand = "ffprobe"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ImagesDir:    defaultImagesDir,
			VideosDir:    defaultVideosDir,
			ProfilesDir:  defaultProfilesDir,
			LogDir:       defaultLogDir,
			RegistryFile: defaultRegistryFile,
			SocketPath:   defaultSocketPath,
		},
		Generation: Generation{
			ThreadCount:         defaultThreadCount,
			BatchSize:           defaultBatchSize,
			ImagesPerItem:       defaultImagesPerItem,
			Mode:                defaultMode,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			TimeoutSeconds:      defaultTimeoutSeconds,
			DelaySeconds:        defaultDelaySeconds,
		},
		Browser: Browser{
			DriverCommand:     defaultDriverCommand,
			AutomationCommand: defaultAutomationCommand,
			Placement:         defaultPlacement,
			ManualLogin:       true,
			RightOffsetX:      defaultRightOffsetX,
		},
		OpenRouter: OpenRouter{
			BaseURL:        defaultOpenRouterBaseURL,
			Referer:        defaultOpenRouterReferer,
			Title:          defaultOpenRouterTitle,
			TimeoutSeconds: defaultOpenRouterTimeoutSeconds,
		},
		Prompts: Prompts{
			Source: defaultPromptSource,
		},
		Media: Media{
			FFmpegCommand:  defaultFFmpegCommand,
			FFprobeCommand: defaultFFprobeCommand,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
