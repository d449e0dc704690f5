package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	ImagesDir    string `toml:"images_dir"`
	VideosDir    string `toml:"videos_dir"`
	ProfilesDir  string `toml:"profiles_dir"`
	LogDir       string `toml:"log_dir"`
	RegistryFile string `toml:"registry_file"`
	SocketPath   string `toml:"socket_path"`
}

// Generation contains worker pool sizing and per-item pipeline settings.
type Generation struct {
	ThreadCount         int    `toml:"thread_count"`
	BatchSize           int    `toml:"batch_size"`
	ImagesPerItem       int    `toml:"images_per_item"`
	Mode                string `toml:"mode"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	DelaySeconds        int    `toml:"delay_seconds"`
}

// Browser contains driver process and window placement settings.
type Browser struct {
	DriverCommand     string `toml:"driver_command"`
	AutomationCommand string `toml:"automation_command"`
	Placement         string `toml:"placement"`
	ManualLogin       bool   `toml:"manual_login"`
	RightOffsetX      int    `toml:"right_offset_x"`
}

// OpenRouter contains connection settings for the prompt generation service.
type OpenRouter struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Prompts selects the prompt source variant.
type Prompts struct {
	Source     string `toml:"source"`
	ManualFile string `toml:"manual_file"`
}

// Media contains external media tool settings.
type Media struct {
	FFmpegCommand  string `toml:"ffmpeg_command"`
	FFprobeCommand string `toml:"ffprobe_command"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for one orchestrator run.
//
// The core treats a loaded Config as an immutable snapshot; no field is
// mutated after Load returns.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Generation Generation `toml:"generation"`
	Browser    Browser    `toml:"browser"`
	OpenRouter OpenRouter `toml:"openrouter"`
	Prompts    Prompts    `toml:"prompts"`
	Media      Media      `toml:"media"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imagine/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. Credentials may be supplied via
// a .env file or the environment instead of the config file.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverrides overlays credentials from a .env file and the process
// environment so API keys never need to live in the config file.
func applyEnvOverrides(cfg *Config) {
	_ = godotenv.Load()
	if key := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")); key != "" {
		cfg.OpenRouter.APIKey = key
	}
	if model := strings.TrimSpace(os.Getenv("OPENROUTER_MODEL")); model != "" {
		cfg.OpenRouter.Model = model
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("imagine.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the artifact, profile, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ImagesDir,
		c.Paths.VideosDir,
		c.TempDir(),
		c.Paths.ProfilesDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TempDir returns the scratch directory for intermediate video segments.
func (c *Config) TempDir() string {
	return filepath.Join(c.Paths.VideosDir, "temp")
}

// PollInterval and Timeout are consumed as durations by the pipeline engine.

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return expanded, fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return expanded, nil
}
