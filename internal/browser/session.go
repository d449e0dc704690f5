// Package browser owns the per-worker browser session: a driver process
// launched against a persistent profile directory, registered for cleanup,
// and optionally gated on a manual login confirmation.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/procreg"
)

const terminateGrace = 2 * time.Second

// Launcher starts driver processes for workers.
type Launcher struct {
	browser     config.Browser
	profilesDir string
	registry    *procreg.Registry
	logger      *slog.Logger
}

// NewLauncher builds a launcher from the loaded configuration.
func NewLauncher(cfg *config.Config, registry *procreg.Registry, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Launcher{
		browser:     cfg.Browser,
		profilesDir: cfg.Paths.ProfilesDir,
		registry:    registry,
		logger:      logger.With(logging.String(logging.FieldComponent, "browser")),
	}
}

// Acquire launches the driver for one worker. The profile directory persists
// across runs so cookies and login state survive, which is what lets repeat
// runs skip the manual login step.
func (l *Launcher) Acquire(ctx context.Context, workerID int) (*Session, error) {
	profileDir := filepath.Join(l.profilesDir, fmt.Sprintf("worker_%d", workerID))
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}

	args := l.driverArgs(profileDir)
	cmd := exec.Command(l.browser.DriverCommand, args...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start driver %q: %w", l.browser.DriverCommand, err)
	}
	pid := cmd.Process.Pid

	if err := l.registry.Add(pid); err != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		return nil, fmt.Errorf("register driver pid: %w", err)
	}

	session := &Session{
		workerID:   workerID,
		profileDir: profileDir,
		pid:        pid,
		cmd:        cmd,
		registry:   l.registry,
		logger:     l.logger.With(logging.Int(logging.FieldWorkerID, workerID)),
		needsLogin: l.browser.ManualLogin,
		loginCh:    make(chan struct{}),
		exited:     make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		close(session.exited)
	}()

	session.logger.InfoContext(ctx, "driver started",
		logging.Int("pid", pid),
		logging.String("profile", profileDir))
	return session, nil
}

// driverArgs builds the launch flags for the configured window placement.
func (l *Launcher) driverArgs(profileDir string) []string {
	args := []string{
		"--user-data-dir=" + profileDir,
		"--disable-notifications",
		"--disable-infobars",
	}
	switch l.browser.Placement {
	case "right":
		args = append(args,
			fmt.Sprintf("--window-position=%d,0", l.browser.RightOffsetX),
			"--start-maximized")
	case "compact":
		// Tiny window at quarter scale keeps twenty sessions on one screen.
		args = append(args,
			"--window-position=0,0",
			"--window-size=400,300",
			"--force-device-scale-factor=0.25")
	default:
		args = append(args, "--window-position=0,0", "--start-maximized")
	}
	return args
}

// Session is one live driver process bound to a worker.
type Session struct {
	workerID   int
	profileDir string
	pid        int
	cmd        *exec.Cmd
	registry   *procreg.Registry
	logger     *slog.Logger

	needsLogin  bool
	loginOnce   sync.Once
	loginCh     chan struct{}
	releaseOnce sync.Once
	exited      chan struct{}
}

// ProfileDir returns the session's profile directory.
func (s *Session) ProfileDir() string {
	return s.profileDir
}

// PID returns the driver process id.
func (s *Session) PID() int {
	return s.pid
}

// AwaitLogin blocks until the operator confirms the session is logged in, or
// returns immediately when manual login is disabled. Confirmation arrives out
// of band through ConfirmLogin.
func (s *Session) AwaitLogin(ctx context.Context) error {
	if !s.needsLogin {
		return nil
	}
	s.logger.InfoContext(ctx, "waiting for manual login confirmation")
	select {
	case <-s.loginCh:
		return nil
	case <-s.exited:
		return fmt.Errorf("driver exited before login was confirmed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConfirmLogin unblocks AwaitLogin. Safe to call more than once.
func (s *Session) ConfirmLogin() {
	s.loginOnce.Do(func() {
		close(s.loginCh)
	})
}

// Release terminates the driver and drops its registry entry. The entry is
// removed even when the process is already gone.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		select {
		case <-s.exited:
		default:
			_ = s.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-s.exited:
			case <-time.After(terminateGrace):
				_ = s.cmd.Process.Kill()
				<-s.exited
			}
		}
		if err := s.registry.Remove(s.pid); err != nil {
			s.logger.Warn("deregister driver pid", logging.Error(err))
		}
		s.logger.Info("driver stopped", logging.Int("pid", s.pid))
	})
}
