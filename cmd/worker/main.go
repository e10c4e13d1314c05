package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callops_backend/internal/config"
	"callops_backend/internal/scheduler"
	"callops_backend/internal/storage"
	"callops_backend/platform/db"
	"callops_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	var archiver scheduler.Archiver
	if cfg.IsMinIOEnabled() {
		arc, err := storage.NewArchiver(cfg)
		if err != nil {
			log.Error("failed to initialize recording archiver", "error", err)
			panic("failed to initialize recording archiver: " + err.Error())
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := arc.EnsureBucket(bucketCtx); err != nil {
			cancel()
			log.Error("failed to ensure recordings bucket", "error", err)
			panic("failed to ensure recordings bucket: " + err.Error())
		}
		cancel()
		archiver = arc
		log.Info("recording archiver initialized", "bucket", cfg.RecordingBucket)
	} else {
		log.Warn("MinIO not configured; recording archival jobs will no-op")
	}

	worker, err := scheduler.NewWorker(cfg, cfg, pool, archiver, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		periodic.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped", "error", err)
	}
	log.Info("worker shut down")
}
