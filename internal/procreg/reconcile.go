package procreg

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/PhucHuwu/Imagine-IV/internal/logging"
)

const terminateGrace = 2 * time.Second

// Reconcile terminates driver processes left over from a prior ungraceful
// shutdown and truncates the registry. A recorded pid is only killed when it
// is alive and its executable name matches expectedName; pids recycled by the
// OS for unrelated processes are left alone. Reconcile is idempotent.
func (r *Registry) Reconcile(logger *slog.Logger, expectedName string) (int, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	pids, err := r.List()
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, r.Clear()
	}

	logger.Info("reconciling leftover driver processes", logging.Int("recorded", len(pids)))

	killed := 0
	for _, pid := range pids {
		if !processMatches(pid, expectedName) {
			continue
		}
		if err := terminate(pid); err != nil {
			logger.Warn("failed to terminate leftover process",
				logging.Int("pid", pid), logging.Error(err))
			continue
		}
		logger.Info("terminated leftover process", logging.Int("pid", pid))
		killed++
	}

	if err := r.Clear(); err != nil {
		return killed, fmt.Errorf("clear registry after reconcile: %w", err)
	}
	return killed, nil
}

// processMatches reports whether pid is alive and runs the expected
// executable. The comm check guards against pid reuse.
func processMatches(pid int, expectedName string) bool {
	if err := unix.Kill(pid, 0); err != nil {
		return false
	}
	if expectedName == "" {
		return true
	}
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		// No procfs entry to verify against; err on the side of not killing.
		return false
	}
	name := strings.TrimSpace(string(comm))
	expected := filepath.Base(expectedName)
	// comm is truncated to 15 characters by the kernel.
	if len(expected) > 15 {
		expected = expected[:15]
	}
	return name == expected
}

func terminate(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return err
	}
	deadline := time.Now().Add(terminateGrace)
	for time.Now().Before(deadline) {
		if err := unix.Kill(pid, 0); errors.Is(err, unix.ESRCH) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
