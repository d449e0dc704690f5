package prompts

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

// ManualList serves prompt sets from a user-authored TOML file. Sets are
// handed out round-robin and the cursor wraps, so a short list simply repeats
// across a long run.
type ManualList struct {
	mu   sync.Mutex
	sets []Set
	next int
}

type manualFile struct {
	Sets []Set `toml:"sets"`
}

// LoadManualList parses the prompt file at path.
func LoadManualList(path string) (*ManualList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInsufficientPrompts, "prompts", "load", fmt.Sprintf("read %s", path), err)
	}
	var parsed manualFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, services.Wrap(services.ErrInsufficientPrompts, "prompts", "load", fmt.Sprintf("parse %s", path), err)
	}
	if len(parsed.Sets) == 0 {
		return nil, services.Wrap(services.ErrInsufficientPrompts, "prompts", "load", fmt.Sprintf("no prompt sets in %s", path), nil)
	}
	return &ManualList{sets: parsed.Sets}, nil
}

// NewManualList builds a list from in-memory sets.
func NewManualList(sets []Set) *ManualList {
	return &ManualList{sets: append([]Set(nil), sets...)}
}

// Len reports the number of configured sets.
func (m *ManualList) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sets)
}

// Next returns the next set in rotation. A set missing a prompt the mode
// needs fails that draw; the cursor still advances so the following item gets
// the next entry.
func (m *ManualList) Next(_ context.Context, mode run.Mode) (Set, error) {
	m.mu.Lock()
	if len(m.sets) == 0 {
		m.mu.Unlock()
		return Set{}, services.Wrap(services.ErrInsufficientPrompts, "prompts", "next", "prompt list is empty", nil)
	}
	index := m.next % len(m.sets)
	set := m.sets[index]
	m.next = (m.next + 1) % len(m.sets)
	m.mu.Unlock()

	if err := set.Validate(mode); err != nil {
		return Set{}, fmt.Errorf("prompt set %d: %w", index+1, err)
	}
	return set, nil
}

var _ Source = (*ManualList)(nil)
