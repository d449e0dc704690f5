// Package imagine drives the generation web UI for one browser session. The
// element-level automation lives in an external helper binary; this package
// defines the operations the pipeline needs and a client that shells out to
// that helper.
package imagine

import "context"

// UI is the set of interactions the pipeline performs against the generation
// page of a single browser session. Probe methods report current page state
// without blocking; the pipeline's poller drives them on an interval.
type UI interface {
	// SubmitImagePrompt types the prompt into the image form and submits it.
	SubmitImagePrompt(ctx context.Context, prompt string) error
	// ImageReady reports whether generated image thumbnails are present.
	ImageReady(ctx context.Context) (bool, error)
	// GenerationFailed reports whether the page shows a failure or content
	// moderation notice for the current request.
	GenerationFailed(ctx context.Context) (bool, error)
	// DownloadImage saves the rank-th generated image (1-based, best first)
	// to dest.
	DownloadImage(ctx context.Context, rank int, dest string) error
	// SubmitVideo uploads the source image and submits the motion prompt.
	SubmitVideo(ctx context.Context, imagePath, prompt string) error
	// VideoReady reports whether the rendered clip is available.
	VideoReady(ctx context.Context) (bool, error)
	// DownloadVideo saves the rendered clip to dest.
	DownloadVideo(ctx context.Context, dest string) error
	// Reset returns the page to a clean state for the next item.
	Reset(ctx context.Context) error
}

// Factory builds a UI bound to one session's profile directory.
type Factory func(profileDir string) UI
