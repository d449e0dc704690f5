// Package artifacts owns deterministic naming and directory placement for
// produced images and videos.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Kind labels what a produced file is.
type Kind string

const (
	KindImage        Kind = "image"
	KindVideoSegment Kind = "video_segment"
	KindVideoFinal   Kind = "video_final"
)

const stampLayout = "02-01_15-04"

// Store hands out artifact paths named {day-month_hour-minute}_{seq}.{ext}.
//
// The sequence counter is run-wide and strictly increasing across all
// workers; a number is never reused, even when the item that claimed it is
// later skipped. Temp paths for intermediate segments are keyed by item
// instead so concurrent workers never collide in the scratch directory.
type Store struct {
	imagesDir string
	videosDir string
	tempDir   string
	seq       atomic.Uint64
	now       func() time.Time
}

// NewStore creates the artifact directories and returns a store rooted there.
func NewStore(imagesDir, videosDir string) (*Store, error) {
	store := &Store{
		imagesDir: imagesDir,
		videosDir: videosDir,
		tempDir:   filepath.Join(videosDir, "temp"),
		now:       time.Now,
	}
	for _, dir := range []string{imagesDir, videosDir, store.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact directory %q: %w", dir, err)
		}
	}
	return store, nil
}

// NextImagePath reserves the next sequence number for a still image.
func (s *Store) NextImagePath() string {
	return filepath.Join(s.imagesDir, s.nextName("jpg"))
}

// NextVideoPath reserves the next sequence number for a final video.
func (s *Store) NextVideoPath() string {
	return filepath.Join(s.videosDir, s.nextName("mp4"))
}

// TempSegmentPath returns the scratch location for one of an item's segments.
func (s *Store) TempSegmentPath(itemID string, segment int) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("%s_segment%d.mp4", itemID, segment))
}

// TempFramePath returns the scratch location for an item's extracted frame.
func (s *Store) TempFramePath(itemID string) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("%s_frame.jpg", itemID))
}

// TempImagePath returns the scratch location for the source image that seeds
// an item's video stages. It consumes no sequence number; only image-mode
// output lands in the images directory.
func (s *Store) TempImagePath(itemID string) string {
	return filepath.Join(s.tempDir, fmt.Sprintf("%s_source.jpg", itemID))
}

// TempDir exposes the scratch directory.
func (s *Store) TempDir() string {
	return s.tempDir
}

// Sequence reports how many artifact names have been handed out.
func (s *Store) Sequence() uint64 {
	return s.seq.Load()
}

func (s *Store) nextName(ext string) string {
	seq := s.seq.Add(1)
	return fmt.Sprintf("%s_%03d.%s", s.now().Format(stampLayout), seq, ext)
}
