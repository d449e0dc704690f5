// Package pipeline advances one item at a time through the generation stages:
// prompt acquisition, image generation, one or two video segments, and the
// final stitch. Any stage failure abandons the item as skipped; there is no
// retry.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/artifacts"
	"github.com/PhucHuwu/Imagine-IV/internal/imagine"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/media"
	"github.com/PhucHuwu/Imagine-IV/internal/poll"
	"github.com/PhucHuwu/Imagine-IV/internal/prompts"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

// ContinuationPrefix is prepended to the second segment's motion prompt so
// the renderer carries the scene forward from the extracted frame.
const ContinuationPrefix = "Continue the motion and action smoothly from this exact frame. Maintain the same style, lighting, and camera angle. "

// Ledger is the subset of the run store the engine persists through.
type Ledger interface {
	Update(ctx context.Context, item *run.Item) error
}

// Engine runs the per-item state machine for one worker's session.
type Engine struct {
	ui            imagine.UI
	source        prompts.Source
	stitcher      media.Stitcher
	artifacts     *artifacts.Store
	ledger        Ledger
	logger        *slog.Logger
	pollInterval  time.Duration
	timeout       time.Duration
	imagesPerItem int
}

// Params collects the engine's collaborators and tuning.
type Params struct {
	UI            imagine.UI
	Source        prompts.Source
	Stitcher      media.Stitcher
	Artifacts     *artifacts.Store
	Ledger        Ledger
	Logger        *slog.Logger
	PollInterval  time.Duration
	Timeout       time.Duration
	ImagesPerItem int
}

// NewEngine constructs an engine.
func NewEngine(params Params) *Engine {
	logger := params.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := params.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	imagesPerItem := params.ImagesPerItem
	if imagesPerItem < 1 {
		imagesPerItem = 1
	}
	return &Engine{
		ui:            params.UI,
		source:        params.Source,
		stitcher:      params.Stitcher,
		artifacts:     params.Artifacts,
		ledger:        params.Ledger,
		logger:        logging.NewComponentLogger(logger, "pipeline"),
		pollInterval:  interval,
		timeout:       timeout,
		imagesPerItem: imagesPerItem,
	}
}

// Run advances the item until it reaches a terminal status. Stage failures
// are absorbed into a skipped terminal state; the returned error is reserved
// for ledger persistence problems.
func (e *Engine) Run(ctx context.Context, item *run.Item) error {
	logger := e.itemLogger(item)

	if err := e.ui.Reset(ctx); err != nil {
		return e.skip(ctx, item, err)
	}

	set, err := e.source.Next(ctx, item.Mode)
	if err != nil {
		return e.skip(ctx, item, err)
	}
	if err := e.advance(ctx, item, run.StatusPromptReady); err != nil {
		return err
	}

	if err := e.ui.SubmitImagePrompt(ctx, set.Image); err != nil {
		return e.skip(ctx, item, err)
	}
	if err := e.await(ctx, "image generation", e.ui.ImageReady); err != nil {
		return e.skip(ctx, item, err)
	}
	if err := e.advance(ctx, item, run.StatusImageReady); err != nil {
		return err
	}

	imagePath, err := e.downloadImages(ctx, item)
	if err != nil {
		return e.skip(ctx, item, err)
	}

	if item.Mode == run.ModeImage {
		logger.InfoContext(ctx, "item complete", logging.String("artifact", imagePath))
		return e.advance(ctx, item, run.StatusDone)
	}

	return e.renderVideo(ctx, item, set, imagePath)
}

// renderVideo covers the segment stages shared by both video modes.
func (e *Engine) renderVideo(ctx context.Context, item *run.Item, set prompts.Set, imagePath string) error {
	logger := e.itemLogger(item)

	if err := e.ui.SubmitVideo(ctx, imagePath, set.Video1); err != nil {
		return e.skip(ctx, item, err)
	}
	if err := e.advance(ctx, item, run.StatusSegment1Rendering); err != nil {
		return err
	}
	if err := e.await(ctx, "segment 1 render", e.ui.VideoReady); err != nil {
		return e.skip(ctx, item, err)
	}

	if item.Mode == run.ModeVideo6 {
		segmentPath := e.artifacts.NextVideoPath()
		if err := e.ui.DownloadVideo(ctx, segmentPath); err != nil {
			return e.skip(ctx, item, err)
		}
		item.SetArtifact(run.ArtifactSegment1, segmentPath)
		if err := e.advance(ctx, item, run.StatusSegment1Ready); err != nil {
			return err
		}
		e.removeTemps(ctx, logger, imagePath)
		logger.InfoContext(ctx, "item complete", logging.String("artifact", segmentPath))
		return e.advance(ctx, item, run.StatusDone)
	}

	// Twelve second mode: the first segment lands in the temp area and only
	// the stitched result gets a final name.
	segment1 := e.artifacts.TempSegmentPath(item.PublicID, 1)
	if err := e.ui.DownloadVideo(ctx, segment1); err != nil {
		return e.skip(ctx, item, err)
	}
	item.SetArtifact(run.ArtifactSegment1, segment1)
	if err := e.advance(ctx, item, run.StatusSegment1Ready); err != nil {
		return err
	}

	framePath := e.artifacts.TempFramePath(item.PublicID)
	if err := e.stitcher.ExtractLastFrame(ctx, segment1, framePath); err != nil {
		return e.skip(ctx, item, err)
	}
	item.SetArtifact(run.ArtifactFrame, framePath)
	if err := e.advance(ctx, item, run.StatusFrameExtracted); err != nil {
		return err
	}

	if err := e.ui.SubmitVideo(ctx, framePath, ContinuationPrefix+set.Video2); err != nil {
		return e.skip(ctx, item, err)
	}
	if err := e.advance(ctx, item, run.StatusSegment2Rendering); err != nil {
		return err
	}
	if err := e.await(ctx, "segment 2 render", e.ui.VideoReady); err != nil {
		return e.skip(ctx, item, err)
	}

	segment2 := e.artifacts.TempSegmentPath(item.PublicID, 2)
	if err := e.ui.DownloadVideo(ctx, segment2); err != nil {
		return e.skip(ctx, item, err)
	}
	item.SetArtifact(run.ArtifactSegment2, segment2)
	if err := e.advance(ctx, item, run.StatusSegment2Ready); err != nil {
		return err
	}

	finalPath := e.artifacts.NextVideoPath()
	if err := e.stitcher.Concat(ctx, segment1, segment2, finalPath); err != nil {
		return e.skip(ctx, item, err)
	}
	item.SetArtifact(run.ArtifactFinal, finalPath)
	if err := e.advance(ctx, item, run.StatusStitched); err != nil {
		return err
	}

	// Temp files are only removed after a successful stitch, so an aborted
	// item leaves its first segment behind for inspection.
	e.removeTemps(ctx, logger, imagePath, segment1, segment2, framePath)

	logger.InfoContext(ctx, "item complete", logging.String("artifact", finalPath))
	return e.advance(ctx, item, run.StatusDone)
}

func (e *Engine) removeTemps(ctx context.Context, logger *slog.Logger, paths ...string) {
	for _, temp := range paths {
		if err := os.Remove(temp); err != nil && !os.IsNotExist(err) {
			logger.WarnContext(ctx, "remove temp file", logging.String("path", temp), logging.Error(err))
		}
	}
}

// downloadImages saves the generated images and returns the path of the
// highest ranked one, which seeds the video stages. In video modes the single
// source image is an intermediate and lands in the temp area; the images
// directory holds image-mode output only.
func (e *Engine) downloadImages(ctx context.Context, item *run.Item) (string, error) {
	if item.Mode != run.ModeImage {
		dest := e.artifacts.TempImagePath(item.PublicID)
		if err := e.ui.DownloadImage(ctx, 1, dest); err != nil {
			return "", err
		}
		item.SetArtifact(run.ArtifactImage, dest)
		return dest, nil
	}

	var first string
	for rank := 1; rank <= e.imagesPerItem; rank++ {
		dest := e.artifacts.NextImagePath()
		if err := e.ui.DownloadImage(ctx, rank, dest); err != nil {
			return "", err
		}
		if rank == 1 {
			first = dest
			item.SetArtifact(run.ArtifactImage, dest)
		}
	}
	return first, nil
}

// await polls the ready probe until it reports true, the UI reports a
// generation failure, the stage times out, or ctx is cancelled.
func (e *Engine) await(ctx context.Context, operation string, ready func(context.Context) (bool, error)) error {
	var probeErr error
	var failed bool

	result := poll.WaitUntil(ctx, func() bool {
		ok, err := ready(ctx)
		if err != nil {
			probeErr = err
			return true
		}
		if ok {
			return true
		}
		ok, err = e.ui.GenerationFailed(ctx)
		if err != nil {
			probeErr = err
			return true
		}
		if ok {
			failed = true
			return true
		}
		return false
	}, e.timeout, e.pollInterval)

	switch {
	case probeErr != nil:
		return probeErr
	case failed:
		return services.Wrap(services.ErrUIFailure, "pipeline", operation, "generation failed notice", nil)
	case result == poll.TimedOut:
		return services.Wrap(services.ErrTimeout, "pipeline", operation, fmt.Sprintf("no result within %s", e.timeout), nil)
	case result == poll.Cancelled:
		return context.Canceled
	default:
		return nil
	}
}

// advance moves the item to the next status and persists the transition.
func (e *Engine) advance(ctx context.Context, item *run.Item, status run.Status) error {
	item.Status = status
	if err := e.ledger.Update(ctx, item); err != nil {
		return fmt.Errorf("persist status %s: %w", status, err)
	}
	e.itemLogger(item).DebugContext(ctx, "stage advanced", logging.String(logging.FieldStage, string(status)))
	return nil
}

// skip records a terminal skipped state for the item. The stage error is
// absorbed here; only a persistence failure propagates.
func (e *Engine) skip(ctx context.Context, item *run.Item, cause error) error {
	kind := services.ClassifySkip(cause)
	item.SetSkipped(kind, cause.Error())
	// Persist with a fresh context so cancellation cannot lose the record.
	persistCtx := ctx
	if persistCtx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := e.ledger.Update(persistCtx, item); err != nil {
		return fmt.Errorf("persist skip: %w", err)
	}
	e.itemLogger(item).WarnContext(persistCtx, "item skipped",
		logging.String("kind", string(kind)),
		logging.Error(cause))
	return nil
}

func (e *Engine) itemLogger(item *run.Item) *slog.Logger {
	return e.logger.With(
		logging.String(logging.FieldItemID, item.PublicID),
		logging.Int(logging.FieldWorkerID, item.WorkerID))
}
