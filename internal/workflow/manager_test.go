package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/artifacts"
	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/imagine"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/prompts"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/workflow"
)

type fakeSession struct {
	profileDir string
	needLogin  bool
	loginOnce  sync.Once
	loginCh    chan struct{}
	released   atomic.Bool
}

func newFakeSession(profileDir string, needLogin bool) *fakeSession {
	return &fakeSession{profileDir: profileDir, needLogin: needLogin, loginCh: make(chan struct{})}
}

func (f *fakeSession) ProfileDir() string { return f.profileDir }

func (f *fakeSession) AwaitLogin(ctx context.Context) error {
	if !f.needLogin {
		return nil
	}
	select {
	case <-f.loginCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSession) ConfirmLogin() {
	f.loginOnce.Do(func() { close(f.loginCh) })
}

func (f *fakeSession) Release() { f.released.Store(true) }

// stubUI completes every stage instantly and writes stub files on download.
type stubUI struct{}

func (stubUI) Reset(context.Context) error                      { return nil }
func (stubUI) SubmitImagePrompt(context.Context, string) error  { return nil }
func (stubUI) ImageReady(context.Context) (bool, error)         { return true, nil }
func (stubUI) GenerationFailed(context.Context) (bool, error)   { return false, nil }
func (stubUI) SubmitVideo(context.Context, string, string) error { return nil }
func (stubUI) VideoReady(context.Context) (bool, error)         { return true, nil }

func (stubUI) DownloadImage(_ context.Context, _ int, dest string) error {
	return os.WriteFile(dest, []byte("image"), 0o644)
}

func (stubUI) DownloadVideo(_ context.Context, dest string) error {
	return os.WriteFile(dest, []byte("video"), 0o644)
}

type stubStitcher struct{}

func (stubStitcher) ExtractLastFrame(_ context.Context, _, framePath string) error {
	return os.WriteFile(framePath, []byte("frame"), 0o644)
}

func (stubStitcher) Concat(_ context.Context, _, _ string, outputPath string) error {
	return os.WriteFile(outputPath, []byte("stitched"), 0o644)
}

func (stubStitcher) Duration(context.Context, string) (float64, error) { return 6, nil }

// failingUI reports a generation failure notice instead of an image.
type failingUI struct {
	stubUI
}

func (failingUI) ImageReady(context.Context) (bool, error)       { return false, nil }
func (failingUI) GenerationFailed(context.Context) (bool, error) { return true, nil }

type harness struct {
	manager   *workflow.Manager
	store     *run.Store
	imagesDir string
	videosDir string
	sessions  *sync.Map
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	return newHarnessUI(t, mutate, stubUI{})
}

func newHarnessUI(t *testing.T, mutate func(*config.Config), ui imagine.UI) *harness {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ImagesDir = filepath.Join(base, "images")
	cfg.Paths.VideosDir = filepath.Join(base, "videos")
	cfg.Paths.ProfilesDir = filepath.Join(base, "profiles")
	cfg.Generation.ThreadCount = 2
	cfg.Generation.ImagesPerItem = 4
	cfg.Generation.PollIntervalSeconds = 1
	cfg.Generation.TimeoutSeconds = 5
	cfg.Generation.DelaySeconds = 0
	cfg.Browser.ManualLogin = false
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := run.OpenPath(filepath.Join(base, "run.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	art, err := artifacts.NewStore(cfg.Paths.ImagesDir, cfg.Paths.VideosDir)
	if err != nil {
		t.Fatalf("artifacts store: %v", err)
	}

	sessions := &sync.Map{}
	acquire := func(_ context.Context, workerID int) (workflow.Session, error) {
		session := newFakeSession(filepath.Join(cfg.Paths.ProfilesDir, "worker"), cfg.Browser.ManualLogin)
		sessions.Store(workerID, session)
		return session, nil
	}

	manager := workflow.NewManager(workflow.Params{
		Config:    &cfg,
		Store:     store,
		Acquire:   acquire,
		UIFactory: func(string) imagine.UI { return ui },
		Source:    prompts.NewManualList([]prompts.Set{{Image: "a kite", Video1: "it dips", Video2: "it loops"}}),
		Stitcher:  stubStitcher{},
		Artifacts: art,
		Logger:    logging.NewNop(),
	})
	return &harness{
		manager:   manager,
		store:     store,
		imagesDir: cfg.Paths.ImagesDir,
		videosDir: cfg.Paths.VideosDir,
		sessions:  sessions,
	}
}

func TestRunCompletesBatchAcrossWorkers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeImage, Count: 3}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.manager.Wait()

	status := h.manager.Status()
	if status.Running {
		t.Fatal("expected pool to be stopped")
	}
	if status.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", status.Remaining)
	}
	if status.Items.Done != 3 || status.Items.Skipped != 0 {
		t.Fatalf("expected 3 done items, got %+v", status.Items)
	}

	// Four images per item, three items.
	images, err := filepath.Glob(filepath.Join(h.imagesDir, "*.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(images) != 12 {
		t.Fatalf("expected 12 images, got %d", len(images))
	}

	// Every item id is unique and carries the run stamp prefix.
	items, err := h.store.ListRun(ctx, status.RunID)
	if err != nil {
		t.Fatalf("ListRun: %v", err)
	}
	seen := map[string]bool{}
	for _, item := range items {
		if seen[item.PublicID] {
			t.Fatalf("duplicate item id %q", item.PublicID)
		}
		seen[item.PublicID] = true
	}

	// All sessions were released.
	h.sessions.Range(func(_, value any) bool {
		if !value.(*fakeSession).released.Load() {
			t.Error("session not released")
		}
		return true
	})
}

func TestVideo12RunProducesStitchedOutputs(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Generation.ThreadCount = 1
	})
	ctx := context.Background()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeVideo12, Count: 2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.manager.Wait()

	status := h.manager.Status()
	if status.Items.Done != 2 {
		t.Fatalf("expected 2 done items, got %+v", status.Items)
	}

	videos, err := filepath.Glob(filepath.Join(h.videosDir, "*.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 stitched videos, got %v", videos)
	}
}

func TestStartRejectsConcurrentRuns(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Browser.ManualLogin = true
	})
	ctx := context.Background()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeImage, Count: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.manager.Wait()
	defer h.manager.Stop()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeImage, Count: 1}); err == nil {
		t.Fatal("expected second Start to fail while a run is active")
	}
}

func TestStartValidatesTarget(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.manager.Start(context.Background(), workflow.Target{Mode: run.ModeImage, Count: 0}); err == nil {
		t.Fatal("expected error for zero count")
	}
	if err := h.manager.Start(context.Background(), workflow.Target{Mode: "gif", Count: 1}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestConfirmLoginUnblocksWorker(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Generation.ThreadCount = 1
		cfg.Browser.ManualLogin = true
	})
	ctx := context.Background()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeImage, Count: 1}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The worker parks on the login gate until confirmation arrives.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := h.manager.ConfirmLogin(1); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.manager.Wait()

	status := h.manager.Status()
	if status.Items.Done != 1 {
		t.Fatalf("expected 1 done item, got %+v", status.Items)
	}
}

func TestConfirmLoginUnknownWorker(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.manager.ConfirmLogin(7); err == nil {
		t.Fatal("expected error for unknown worker")
	}
}

func TestStopCancelsActiveRun(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Generation.ThreadCount = 1
		cfg.Browser.ManualLogin = true
	})
	ctx := context.Background()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeImage, Count: 5}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Stop while the worker is still waiting on login; nothing completes.
	h.manager.Stop()
	h.manager.Wait()

	status := h.manager.Status()
	if status.Running {
		t.Fatal("expected pool to be stopped")
	}
	if status.Items.Done != 0 {
		t.Fatalf("expected no completed items, got %+v", status.Items)
	}
}

func TestStatusTalliesSkippedItems(t *testing.T) {
	h := newHarnessUI(t, func(cfg *config.Config) {
		cfg.Generation.ThreadCount = 1
	}, failingUI{})
	ctx := context.Background()

	if err := h.manager.Start(ctx, workflow.Target{Mode: run.ModeImage, Count: 2}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.manager.Wait()

	status := h.manager.Status()
	if status.Items.Done != 0 || status.Items.Skipped != 2 {
		t.Fatalf("expected 2 skipped items, got %+v", status.Items)
	}
	if status.Items.ByKind[run.SkipUIFailure] != 2 {
		t.Fatalf("expected ui_failure tallies, got %+v", status.Items.ByKind)
	}
	if status.Items.Active != 0 {
		t.Fatalf("expected no active items, got %+v", status.Items)
	}
}
