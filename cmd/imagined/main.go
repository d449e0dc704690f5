package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/PhucHuwu/Imagine-IV/internal/artifacts"
	"github.com/PhucHuwu/Imagine-IV/internal/browser"
	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/daemon"
	"github.com/PhucHuwu/Imagine-IV/internal/imagine"
	"github.com/PhucHuwu/Imagine-IV/internal/ipc"
	"github.com/PhucHuwu/Imagine-IV/internal/logging"
	"github.com/PhucHuwu/Imagine-IV/internal/media"
	"github.com/PhucHuwu/Imagine-IV/internal/procreg"
	"github.com/PhucHuwu/Imagine-IV/internal/prompts"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	hub := logging.NewStreamHub(4096)
	logger, err := logging.NewFromConfig(cfg, hub)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := run.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return
	}

	artifactStore, err := artifacts.NewStore(cfg.Paths.ImagesDir, cfg.Paths.VideosDir)
	if err != nil {
		logger.Error("open artifact store", logging.Error(err))
		return
	}

	source, err := prompts.NewFromConfig(cfg)
	if err != nil {
		logger.Error("build prompt source", logging.Error(err))
		return
	}

	registry := procreg.New(cfg.Paths.RegistryFile)
	launcher := browser.NewLauncher(cfg, registry, logger)
	stitcher := media.NewCLI(
		media.WithFFmpeg(cfg.Media.FFmpegCommand),
		media.WithFFprobe(cfg.Media.FFprobeCommand),
	)

	manager := workflow.NewManager(workflow.Params{
		Config: cfg,
		Store:  store,
		Acquire: func(ctx context.Context, workerID int) (workflow.Session, error) {
			return launcher.Acquire(ctx, workerID)
		},
		UIFactory: imagine.NewFactory(cfg.Browser.AutomationCommand),
		Source:    source,
		Stitcher:  stitcher,
		Artifacts: artifactStore,
		Logger:    logger,
	})

	d, err := daemon.New(cfg, store, manager, registry, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, hub, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("imagined shutting down")
}
