package run_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/PhucHuwu/Imagine-IV/internal/run"
)

func openStore(t *testing.T) *run.Store {
	t.Helper()
	store, err := run.OpenPath(filepath.Join(t.TempDir(), "run.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewItemStartsPending(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.NewItem(ctx, "run-1", "30-08_12-00_001", 3, run.ModeVideo12)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if item.Status != run.StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.WorkerID != 3 {
		t.Fatalf("unexpected worker id %d", item.WorkerID)
	}
	if item.Mode != run.ModeVideo12 {
		t.Fatalf("unexpected mode %s", item.Mode)
	}
}

func TestUpdateRoundTripsArtifactsAndSkip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.NewItem(ctx, "run-1", "30-08_12-00_001", 1, run.ModeVideo12)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}

	item.Status = run.StatusSegment1Ready
	item.SetArtifact(run.ArtifactImage, "/tmp/a.jpg")
	item.SetArtifact(run.ArtifactSegment1, "/tmp/s1.mp4")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	item.SetSkipped(run.SkipTimeout, "segment 2 never became ready")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update skipped: %v", err)
	}

	loaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != run.StatusSkipped {
		t.Fatalf("expected skipped, got %s", loaded.Status)
	}
	if loaded.SkipKind != run.SkipTimeout {
		t.Fatalf("expected timeout kind, got %s", loaded.SkipKind)
	}
	if path, ok := loaded.Artifact(run.ArtifactSegment1); !ok || path != "/tmp/s1.mp4" {
		t.Fatalf("segment1 artifact lost: %q %v", path, ok)
	}
	if _, ok := loaded.Artifact(run.ArtifactFinal); ok {
		t.Fatal("skipped item must not carry a final artifact")
	}
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	item, err := store.NewItem(ctx, "run-1", "30-08_12-00_001", 1, run.ModeImage)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	item.Status = run.Status("exploded")
	if err := store.Update(ctx, item); err == nil {
		t.Fatal("expected invalid status error")
	}
}

func TestSummarizeCountsOutcomes(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	outcomes := []struct {
		status run.Status
		kind   run.SkipKind
	}{
		{run.StatusDone, ""},
		{run.StatusDone, ""},
		{run.StatusSkipped, run.SkipMediaTool},
		{run.StatusSegment1Rendering, ""},
	}
	for i, outcome := range outcomes {
		item, err := store.NewItem(ctx, "run-1", fmt.Sprintf("30-08_12-00_%03d", i+1), 1, run.ModeVideo6)
		if err != nil {
			t.Fatalf("NewItem: %v", err)
		}
		item.Status = outcome.status
		item.SkipKind = outcome.kind
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	summary, err := store.Summarize(ctx, "run-1")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.Total != 4 || summary.Done != 2 || summary.Skipped != 1 || summary.Active != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.ByKind[run.SkipMediaTool] != 1 {
		t.Fatalf("unexpected kind counts: %+v", summary.ByKind)
	}
}

func TestParseMode(t *testing.T) {
	if _, err := run.ParseMode("video24s"); err == nil {
		t.Fatal("expected parse error")
	}
	mode, err := run.ParseMode(" Video6s ")
	if err != nil {
		t.Fatalf("ParseMode: %v", err)
	}
	if mode != run.ModeVideo6 {
		t.Fatalf("unexpected mode %s", mode)
	}
}
