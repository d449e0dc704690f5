package procreg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// Registry persists the pids of spawned driver processes in a flat text file,
// one pid per line. The file is shared by all workers and guarded by a file
// lock so concurrent add/remove never interleave writes. The flock only
// excludes other processes, so a plain mutex serializes goroutines here.
type Registry struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// New returns a registry backed by the given file.
func New(path string) *Registry {
	return &Registry{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the registry file location.
func (r *Registry) Path() string {
	return r.path
}

// Add appends a pid to the registry.
func (r *Registry) Add(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return r.withLock(func() error {
		pids, err := r.readLocked()
		if err != nil {
			return err
		}
		for _, existing := range pids {
			if existing == pid {
				return nil
			}
		}
		return r.writeLocked(append(pids, pid))
	})
}

// Remove deletes a pid from the registry. Removing an absent pid is not an
// error; release paths call this unconditionally.
func (r *Registry) Remove(pid int) error {
	return r.withLock(func() error {
		pids, err := r.readLocked()
		if err != nil {
			return err
		}
		kept := pids[:0]
		for _, existing := range pids {
			if existing != pid {
				kept = append(kept, existing)
			}
		}
		return r.writeLocked(kept)
	})
}

// List returns all recorded pids.
func (r *Registry) List() ([]int, error) {
	var pids []int
	err := r.withLock(func() error {
		var readErr error
		pids, readErr = r.readLocked()
		return readErr
	})
	return pids, err
}

// Clear truncates the registry to empty.
func (r *Registry) Clear() error {
	return r.withLock(func() error {
		return r.writeLocked(nil)
	})
}

func (r *Registry) withLock(fn func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("ensure registry directory: %w", err)
	}
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()
	return fn()
}

func (r *Registry) readLocked() ([]int, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var pids []int
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			// Corrupt lines are dropped on the next write.
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func (r *Registry) writeLocked(pids []int) error {
	var builder strings.Builder
	for _, pid := range pids {
		builder.WriteString(strconv.Itoa(pid))
		builder.WriteByte('\n')
	}
	if err := os.WriteFile(r.path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
