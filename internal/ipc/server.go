// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
// It is the only control surface; the CLI is a thin client of this server.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/daemon"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/workflow"
)

// Controller is the daemon surface the RPC service drives. Tests substitute
// a fake.
type Controller interface {
	StartRun(target workflow.Target) error
	StopRun()
	ConfirmLogin(workerID int) error
	Status(ctx context.Context) daemon.Status
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, controller Controller, hub *logging.StreamHub, logger *slog.Logger) (*Server, error) {
	if controller == nil {
		return nil, errors.New("ipc server requires a controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{controller: controller, hub: hub, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName("Imagine", svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve accepts RPC connections until the context is cancelled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	controller Controller
	hub        *logging.StreamHub
	logger     *slog.Logger
	ctx        context.Context
}

func (s *service) StartRun(req StartRunRequest, resp *StartRunResponse) error {
	mode, err := run.ParseMode(req.Mode)
	if err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	if err := s.controller.StartRun(workflow.Target{Mode: mode, Count: req.Count}); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = fmt.Sprintf("run started: %d item(s), mode %s", req.Count, mode)
	return nil
}

func (s *service) StopRun(_ StopRunRequest, resp *StopRunResponse) error {
	s.controller.StopRun()
	resp.Stopped = true
	return nil
}

func (s *service) ConfirmLogin(req ConfirmLoginRequest, resp *ConfirmLoginResponse) error {
	if err := s.controller.ConfirmLogin(req.Worker); err != nil {
		resp.Confirmed = false
		resp.Message = err.Error()
		return nil
	}
	resp.Confirmed = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.controller.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath

	pool := status.Pool
	resp.RunActive = pool.Running
	resp.RunID = pool.RunID
	resp.Mode = string(pool.Mode)
	resp.Requested = pool.Requested
	resp.Remaining = pool.Remaining
	resp.Done = pool.Items.Done
	resp.Skipped = pool.Items.Skipped
	resp.StartedAt = pool.StartedAt
	if len(pool.Items.ByKind) > 0 {
		resp.SkippedKinds = make(map[string]int, len(pool.Items.ByKind))
		for kind, count := range pool.Items.ByKind {
			resp.SkippedKinds[string(kind)] = count
		}
	}
	for _, worker := range pool.Workers {
		resp.Workers = append(resp.Workers, WorkerStatus{
			WorkerID: worker.WorkerID,
			State:    worker.State,
			ItemID:   worker.ItemID,
			Detail:   worker.Detail,
		})
	}
	for _, dep := range status.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return nil
}

const logWaitTimeout = 25 * time.Second

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	if s.hub == nil {
		return errors.New("log streaming unavailable")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	ctx := s.ctx
	if req.Wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, logWaitTimeout)
		defer cancel()
	}

	events, next, err := s.hub.Fetch(ctx, req.Since, limit, req.Wait)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Next = next
	for _, evt := range events {
		resp.Events = append(resp.Events, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp,
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			WorkerID:  evt.WorkerID,
			ItemID:    evt.ItemID,
			Stage:     evt.Stage,
			Fields:    evt.Fields,
		})
	}
	return nil
}
