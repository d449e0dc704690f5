package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/artifacts"
	"github.com/PhucHuwu/Imagine-IV/internal/prompts"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

type fakeLedger struct {
	mu       sync.Mutex
	statuses []run.Status
}

func (f *fakeLedger) Update(_ context.Context, item *run.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, item.Status)
	return nil
}

func (f *fakeLedger) seen() []run.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]run.Status(nil), f.statuses...)
}

type fakeSource struct {
	set prompts.Set
	err error
}

func (f *fakeSource) Next(context.Context, run.Mode) (prompts.Set, error) {
	return f.set, f.err
}

// fakeUI simulates the generation page. Downloads write stub files so the
// engine's artifact handling sees real paths.
type fakeUI struct {
	mu           sync.Mutex
	imageReady   bool
	videoReadyOn int // VideoReady reports true for the first n waits
	videoWaits   int
	failNotice   bool
	submitErr    error

	submittedVideos []string
}

func (f *fakeUI) Reset(context.Context) error { return nil }

func (f *fakeUI) SubmitImagePrompt(context.Context, string) error { return f.submitErr }

func (f *fakeUI) ImageReady(context.Context) (bool, error) { return f.imageReady, nil }

func (f *fakeUI) GenerationFailed(context.Context) (bool, error) { return f.failNotice, nil }

func (f *fakeUI) DownloadImage(_ context.Context, _ int, dest string) error {
	return os.WriteFile(dest, []byte("image"), 0o644)
}

func (f *fakeUI) SubmitVideo(_ context.Context, _ string, prompt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedVideos = append(f.submittedVideos, prompt)
	return nil
}

func (f *fakeUI) VideoReady(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.videoWaits < f.videoReadyOn {
		f.videoWaits++
		return true, nil
	}
	return false, nil
}

func (f *fakeUI) DownloadVideo(_ context.Context, dest string) error {
	return os.WriteFile(dest, []byte("video"), 0o644)
}

type fakeStitcher struct {
	extractErr error
	concatErr  error
}

func (f *fakeStitcher) ExtractLastFrame(_ context.Context, _, framePath string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(framePath, []byte("frame"), 0o644)
}

func (f *fakeStitcher) Concat(_ context.Context, _, _, outputPath string) error {
	if f.concatErr != nil {
		return f.concatErr
	}
	return os.WriteFile(outputPath, []byte("stitched"), 0o644)
}

func (f *fakeStitcher) Duration(context.Context, string) (float64, error) { return 6, nil }

func testArtifacts(t *testing.T) *artifacts.Store {
	t.Helper()
	base := t.TempDir()
	store, err := artifacts.NewStore(filepath.Join(base, "images"), filepath.Join(base, "videos"))
	if err != nil {
		t.Fatalf("artifacts store: %v", err)
	}
	return store
}

func goodSet() prompts.Set {
	return prompts.Set{Image: "a lighthouse", Video1: "waves roll", Video2: "light sweeps"}
}

func newItem(mode run.Mode) *run.Item {
	return &run.Item{
		ID:       1,
		PublicID: "30-08_12-00_001",
		RunID:    "run-1",
		WorkerID: 1,
		Mode:     mode,
		Status:   run.StatusPending,
	}
}

func testEngine(t *testing.T, ui *fakeUI, source *fakeSource, stitcher *fakeStitcher, ledger *fakeLedger, imagesPerItem int) (*Engine, *artifacts.Store) {
	t.Helper()
	art := testArtifacts(t)
	engine := NewEngine(Params{
		UI:            ui,
		Source:        source,
		Stitcher:      stitcher,
		Artifacts:     art,
		Ledger:        ledger,
		PollInterval:  5 * time.Millisecond,
		Timeout:       100 * time.Millisecond,
		ImagesPerItem: imagesPerItem,
	})
	return engine, art
}

func TestImageModeCompletes(t *testing.T) {
	ui := &fakeUI{imageReady: true}
	ledger := &fakeLedger{}
	engine, art := testEngine(t, ui, &fakeSource{set: goodSet()}, &fakeStitcher{}, ledger, 4)

	item := newItem(run.ModeImage)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if item.Status != run.StatusDone {
		t.Fatalf("expected done, got %q (%s)", item.Status, item.ErrorMessage)
	}

	want := []run.Status{run.StatusPromptReady, run.StatusImageReady, run.StatusDone}
	got := ledger.seen()
	if len(got) != len(want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d: want %q, got %q", i, want[i], got[i])
		}
	}

	images, err := filepath.Glob(filepath.Join(filepath.Dir(art.TempDir()), "..", "images", "*.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 4 {
		t.Fatalf("expected 4 downloaded images, got %v", images)
	}

	if _, ok := item.Artifact(run.ArtifactImage); !ok {
		t.Fatal("image artifact not recorded")
	}
}

func TestVideo12ModeStitchesAndCleansTemp(t *testing.T) {
	ui := &fakeUI{imageReady: true, videoReadyOn: 2}
	ledger := &fakeLedger{}
	engine, art := testEngine(t, ui, &fakeSource{set: goodSet()}, &fakeStitcher{}, ledger, 1)

	item := newItem(run.ModeVideo12)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if item.Status != run.StatusDone {
		t.Fatalf("expected done, got %q (%s)", item.Status, item.ErrorMessage)
	}

	finalPath, ok := item.Artifact(run.ArtifactFinal)
	if !ok {
		t.Fatal("final artifact not recorded")
	}
	if _, err := os.Stat(finalPath); err != nil {
		t.Fatalf("stitched output missing: %v", err)
	}

	// Second segment prompt carries the continuation prefix.
	if len(ui.submittedVideos) != 2 {
		t.Fatalf("expected 2 video submissions, got %v", ui.submittedVideos)
	}
	wantPrompt := ContinuationPrefix + "light sweeps"
	if ui.submittedVideos[1] != wantPrompt {
		t.Fatalf("continuation prompt mismatch:\n got %q\nwant %q", ui.submittedVideos[1], wantPrompt)
	}

	// Temp files, the source image included, are gone after a successful
	// stitch, and nothing landed in the images directory.
	leftovers, err := filepath.Glob(filepath.Join(art.TempDir(), "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
	images, err := filepath.Glob(filepath.Join(filepath.Dir(art.TempDir()), "..", "images", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 0 {
		t.Fatalf("video mode wrote to the images directory: %v", images)
	}

	want := []run.Status{
		run.StatusPromptReady,
		run.StatusImageReady,
		run.StatusSegment1Rendering,
		run.StatusSegment1Ready,
		run.StatusFrameExtracted,
		run.StatusSegment2Rendering,
		run.StatusSegment2Ready,
		run.StatusStitched,
		run.StatusDone,
	}
	got := ledger.seen()
	if len(got) != len(want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transition %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestVideo6ModeSourceImageStaysInTemp(t *testing.T) {
	ui := &fakeUI{imageReady: true, videoReadyOn: 1}
	ledger := &fakeLedger{}
	engine, art := testEngine(t, ui, &fakeSource{set: goodSet()}, &fakeStitcher{}, ledger, 4)

	item := newItem(run.ModeVideo6)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if item.Status != run.StatusDone {
		t.Fatalf("expected done, got %q (%s)", item.Status, item.ErrorMessage)
	}

	// The source image was downloaded into the temp area and cleaned up; the
	// images directory is reserved for image-mode output.
	imagePath, ok := item.Artifact(run.ArtifactImage)
	if !ok {
		t.Fatal("image artifact not recorded")
	}
	if filepath.Dir(imagePath) != art.TempDir() {
		t.Fatalf("source image outside temp area: %s", imagePath)
	}
	images, err := filepath.Glob(filepath.Join(filepath.Dir(art.TempDir()), "..", "images", "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 0 {
		t.Fatalf("video mode wrote to the images directory: %v", images)
	}
	leftovers, err := filepath.Glob(filepath.Join(art.TempDir(), "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}

	segmentPath, ok := item.Artifact(run.ArtifactSegment1)
	if !ok {
		t.Fatal("segment artifact not recorded")
	}
	if _, err := os.Stat(segmentPath); err != nil {
		t.Fatalf("final segment missing: %v", err)
	}
}

func TestVideo12TimeoutAtSegment2KeepsFirstSegment(t *testing.T) {
	// Segment 1 renders; segment 2 never does.
	ui := &fakeUI{imageReady: true, videoReadyOn: 1}
	ledger := &fakeLedger{}
	engine, art := testEngine(t, ui, &fakeSource{set: goodSet()}, &fakeStitcher{}, ledger, 1)

	item := newItem(run.ModeVideo12)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if item.Status != run.StatusSkipped {
		t.Fatalf("expected skipped, got %q", item.Status)
	}
	if item.SkipKind != run.SkipTimeout {
		t.Fatalf("expected timeout skip, got %q", item.SkipKind)
	}

	segment1, ok := item.Artifact(run.ArtifactSegment1)
	if !ok {
		t.Fatal("segment1 artifact not recorded")
	}
	if _, err := os.Stat(segment1); err != nil {
		t.Fatalf("first segment should remain for inspection: %v", err)
	}
	if _, ok := item.Artifact(run.ArtifactFinal); ok {
		t.Fatal("no stitched artifact expected after timeout")
	}

	// No stitched video reached the final directory.
	finals, err := filepath.Glob(filepath.Join(filepath.Dir(art.TempDir()), "*.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if len(finals) != 0 {
		t.Fatalf("unexpected final outputs: %v", finals)
	}
}

func TestPromptFailureSkips(t *testing.T) {
	ui := &fakeUI{}
	ledger := &fakeLedger{}
	sourceErr := services.Wrap(services.ErrPromptGeneration, "prompts", "generate", "rate limited", nil)
	engine, _ := testEngine(t, ui, &fakeSource{err: sourceErr}, &fakeStitcher{}, ledger, 1)

	item := newItem(run.ModeVideo6)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if item.Status != run.StatusSkipped || item.SkipKind != run.SkipPromptGeneration {
		t.Fatalf("expected prompt_generation skip, got %q/%q", item.Status, item.SkipKind)
	}
	if item.ErrorMessage == "" {
		t.Fatal("expected error message on skipped item")
	}
}

func TestFailureNoticeSkipsAsUIFailure(t *testing.T) {
	ui := &fakeUI{failNotice: true}
	ledger := &fakeLedger{}
	engine, _ := testEngine(t, ui, &fakeSource{set: goodSet()}, &fakeStitcher{}, ledger, 1)

	item := newItem(run.ModeImage)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if item.Status != run.StatusSkipped || item.SkipKind != run.SkipUIFailure {
		t.Fatalf("expected ui_failure skip, got %q/%q", item.Status, item.SkipKind)
	}
}

func TestMediaToolFailureSkips(t *testing.T) {
	ui := &fakeUI{imageReady: true, videoReadyOn: 2}
	ledger := &fakeLedger{}
	stitcher := &fakeStitcher{extractErr: services.Wrap(services.ErrMediaTool, "media", "extract frame", "boom", nil)}
	engine, _ := testEngine(t, ui, &fakeSource{set: goodSet()}, stitcher, ledger, 1)

	item := newItem(run.ModeVideo12)
	if err := engine.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if item.SkipKind != run.SkipMediaTool {
		t.Fatalf("expected media_tool skip, got %q", item.SkipKind)
	}
}

func TestCancellationSkipsAsCancelled(t *testing.T) {
	ui := &fakeUI{}
	ledger := &fakeLedger{}
	engine, _ := testEngine(t, ui, &fakeSource{set: goodSet()}, &fakeStitcher{}, ledger, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	item := newItem(run.ModeImage)
	if err := engine.Run(ctx, item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if item.SkipKind != run.SkipCancelled {
		t.Fatalf("expected cancelled skip, got %q", item.SkipKind)
	}
}
