package imagine

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

var commandContext = exec.CommandContext

// CLI drives the web UI through the automation helper binary. Every
// invocation carries the session's profile directory so the helper attaches
// to the right browser.
type CLI struct {
	binary     string
	profileDir string
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default helper binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// NewCLI constructs a client bound to one profile directory.
func NewCLI(profileDir string, opts ...Option) *CLI {
	cli := &CLI{binary: "imagine-automate", profileDir: profileDir}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// NewFactory returns a Factory that builds CLI clients with the given binary.
func NewFactory(binary string) Factory {
	return func(profileDir string) UI {
		return NewCLI(profileDir, WithBinary(binary))
	}
}

// SubmitImagePrompt types the prompt into the image form and submits it.
func (c *CLI) SubmitImagePrompt(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt required")
	}
	return c.run(ctx, "submit image prompt", "submit-image", "--prompt", prompt)
}

// ImageReady probes for generated image thumbnails.
func (c *CLI) ImageReady(ctx context.Context) (bool, error) {
	return c.probe(ctx, "probe image ready", "probe", "image-ready")
}

// GenerationFailed probes for a failure or moderation notice.
func (c *CLI) GenerationFailed(ctx context.Context) (bool, error) {
	return c.probe(ctx, "probe generation failed", "probe", "generation-failed")
}

// DownloadImage saves one generated image to dest.
func (c *CLI) DownloadImage(ctx context.Context, rank int, dest string) error {
	if rank < 1 {
		return errors.New("rank must be at least 1")
	}
	if dest == "" {
		return errors.New("destination required")
	}
	return c.run(ctx, "download image", "download-image", "--rank", strconv.Itoa(rank), "--output", dest)
}

// SubmitVideo uploads the source image and submits the motion prompt.
func (c *CLI) SubmitVideo(ctx context.Context, imagePath, prompt string) error {
	if imagePath == "" {
		return errors.New("image path required")
	}
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt required")
	}
	return c.run(ctx, "submit video", "submit-video", "--image", imagePath, "--prompt", prompt)
}

// VideoReady probes for the rendered clip.
func (c *CLI) VideoReady(ctx context.Context) (bool, error) {
	return c.probe(ctx, "probe video ready", "probe", "video-ready")
}

// DownloadVideo saves the rendered clip to dest.
func (c *CLI) DownloadVideo(ctx context.Context, dest string) error {
	if dest == "" {
		return errors.New("destination required")
	}
	return c.run(ctx, "download video", "download-video", "--output", dest)
}

// Reset returns the page to a clean state.
func (c *CLI) Reset(ctx context.Context) error {
	return c.run(ctx, "reset page", "reset")
}

func (c *CLI) run(ctx context.Context, operation string, args ...string) error {
	cmd := commandContext(ctx, c.binary, c.withProfile(args)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrUIFailure, "imagine", operation, tailLine(output), err)
	}
	return nil
}

// probe maps the helper's exit status to a boolean: zero means the condition
// holds, one means it does not, anything else is a helper failure.
func (c *CLI) probe(ctx context.Context, operation string, args ...string) (bool, error) {
	cmd := commandContext(ctx, c.binary, c.withProfile(args)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, services.Wrap(services.ErrUIFailure, "imagine", operation, tailLine(output), err)
}

func (c *CLI) withProfile(args []string) []string {
	return append([]string{"--profile", c.profileDir}, args...)
}

func tailLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ UI = (*CLI)(nil)
