// Package media wraps the ffmpeg and ffprobe command line tools for the two
// operations the pipeline needs: pulling the final frame out of a rendered
// segment and concatenating two segments into one clip.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

var commandContext = exec.CommandContext

// toolContext detaches the subprocess from run cancellation. A started tool
// always runs to completion; the caller observes cancellation only after it
// exits, so a stop request never leaves partial media output behind.
func toolContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

// Stitcher defines the media operations the pipeline depends on.
type Stitcher interface {
	// ExtractLastFrame writes the last frame of videoPath to framePath as a
	// JPEG.
	ExtractLastFrame(ctx context.Context, videoPath, framePath string) error
	// Concat joins two videos into outputPath without re-encoding.
	Concat(ctx context.Context, firstPath, secondPath, outputPath string) error
	// Duration reports the length of a video in seconds.
	Duration(ctx context.Context, videoPath string) (float64, error)
}

// Option configures the CLI stitcher.
type Option func(*CLI)

// WithFFmpeg overrides the default ffmpeg binary name.
func WithFFmpeg(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.ffmpeg = binary
		}
	}
}

// WithFFprobe overrides the default ffprobe binary name.
func WithFFprobe(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.ffprobe = binary
		}
	}
}

// CLI shells out to ffmpeg and ffprobe.
type CLI struct {
	ffmpeg  string
	ffprobe string
}

// NewCLI constructs a CLI stitcher using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Duration probes the container duration of a video file.
func (c *CLI) Duration(ctx context.Context, videoPath string) (float64, error) {
	if videoPath == "" {
		return 0, errors.New("video path required")
	}
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}
	cmd := commandContext(toolContext(ctx), c.ffprobe, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return 0, services.Wrap(services.ErrMediaTool, "media", "probe", commandDetail(cmd), err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrMediaTool, "media", "probe", "unparseable duration", err)
	}
	return duration, nil
}

// ExtractLastFrame seeks to just before the end of the segment and writes a
// single high-quality frame.
func (c *CLI) ExtractLastFrame(ctx context.Context, videoPath, framePath string) error {
	if videoPath == "" || framePath == "" {
		return errors.New("video and frame paths required")
	}
	duration, err := c.Duration(ctx, videoPath)
	if err != nil {
		return err
	}
	if duration <= 0 {
		return services.Wrap(services.ErrMediaTool, "media", "extract frame", fmt.Sprintf("non-positive duration %.3f", duration), nil)
	}
	seek := duration - 0.1
	if seek < 0 {
		seek = 0
	}

	if err := os.MkdirAll(filepath.Dir(framePath), 0o755); err != nil {
		return services.Wrap(services.ErrMediaTool, "media", "extract frame", "ensure output directory", err)
	}

	args := []string{
		"-y",
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	}
	if err := c.runFFmpeg(ctx, "extract frame", args); err != nil {
		return err
	}
	if _, err := os.Stat(framePath); err != nil {
		return services.Wrap(services.ErrMediaTool, "media", "extract frame", "no frame written", err)
	}
	return nil
}

// Concat joins two segments using the concat demuxer with stream copy. Both
// segments come from the same renderer, so codecs always match.
func (c *CLI) Concat(ctx context.Context, firstPath, secondPath, outputPath string) error {
	if firstPath == "" || secondPath == "" || outputPath == "" {
		return errors.New("input and output paths required")
	}
	for _, input := range []string{firstPath, secondPath} {
		if _, err := os.Stat(input); err != nil {
			return services.Wrap(services.ErrMediaTool, "media", "concat", "missing input", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return services.Wrap(services.ErrMediaTool, "media", "concat", "ensure output directory", err)
	}

	listPath, err := writeConcatList(filepath.Dir(outputPath), firstPath, secondPath)
	if err != nil {
		return services.Wrap(services.ErrMediaTool, "media", "concat", "write list file", err)
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	if err := c.runFFmpeg(ctx, "concat", args); err != nil {
		return err
	}
	if _, err := os.Stat(outputPath); err != nil {
		return services.Wrap(services.ErrMediaTool, "media", "concat", "no output written", err)
	}
	return nil
}

func (c *CLI) runFFmpeg(ctx context.Context, operation string, args []string) error {
	cmd := commandContext(toolContext(ctx), c.ffmpeg, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		message := commandDetail(cmd)
		if tail := tailLines(string(output), 3); tail != "" {
			message += ": " + tail
		}
		return services.Wrap(services.ErrMediaTool, "media", operation, message, err)
	}
	return nil
}

func writeConcatList(dir, firstPath, secondPath string) (string, error) {
	file, err := os.CreateTemp(dir, "concat_*.txt")
	if err != nil {
		return "", err
	}
	for _, input := range []string{firstPath, secondPath} {
		abs, err := filepath.Abs(input)
		if err != nil {
			file.Close()
			os.Remove(file.Name())
			return "", err
		}
		// Single quotes follow the concat demuxer's escaping rules.
		if _, err := fmt.Fprintf(file, "file '%s'\n", abs); err != nil {
			file.Close()
			os.Remove(file.Name())
			return "", err
		}
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}

func commandDetail(cmd *exec.Cmd) string {
	if cmd == nil || len(cmd.Args) == 0 {
		return ""
	}
	return filepath.Base(cmd.Args[0])
}

func tailLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " "))
}

var _ Stitcher = (*CLI)(nil)
