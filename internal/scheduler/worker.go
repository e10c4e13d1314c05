package scheduler

import (
	"context"
	"fmt"
	"time"

	"callops_backend/internal/calls"
	"callops_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Archiver copies a recording into durable storage and returns its key.
type Archiver interface {
	ArchiveRecording(ctx context.Context, callID uuid.UUID, recordingURL string) (string, error)
}

// SweepConfig provides the stale-call cutoff.
type SweepConfig interface {
	GetStaleCallMaxAge() time.Duration
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	repo     *calls.Repository
	archiver Archiver
	maxAge   time.Duration
	log      *logger.Logger
}

// NewWorker builds the asynq server with the job handlers registered.
// archiver may be nil when MinIO is not configured; archive jobs then
// succeed as no-ops.
func NewWorker(cfg Config, sweep SweepConfig, pool *pgxpool.Pool, archiver Archiver, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		repo:     calls.NewRepository(pool),
		archiver: archiver,
		maxAge:   sweep.GetStaleCallMaxAge(),
		log:      log,
	}

	mux.HandleFunc(TaskRecordingArchive, w.handleRecordingArchive)
	mux.HandleFunc(TaskStaleCallSweep, w.handleStaleCallSweep)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleRecordingArchive downloads the provider recording and stores it in
// the recordings bucket. The object key is deterministic per call, so
// retries overwrite rather than duplicate.
func (w *Worker) handleRecordingArchive(ctx context.Context, task *asynq.Task) error {
	if w.archiver == nil {
		return nil
	}

	payload, err := ParseRecordingArchivePayload(task)
	if err != nil {
		return err
	}

	callID, err := uuid.Parse(payload.CallID)
	if err != nil {
		return err
	}
	if payload.RecordingURL == "" {
		return nil
	}

	call, err := w.repo.GetByID(ctx, callID)
	if err != nil {
		return err
	}
	if call.RecordingKey != nil && *call.RecordingKey != "" {
		return nil
	}

	key, err := w.archiver.ArchiveRecording(ctx, callID, payload.RecordingURL)
	if err != nil {
		return fmt.Errorf("archive recording for call %s: %w", callID, err)
	}

	if err := w.repo.SetRecordingKey(ctx, callID, key); err != nil {
		return err
	}
	w.log.Info("recording archived", "call_id", callID, "key", key)
	return nil
}

func (w *Worker) handleStaleCallSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := w.repo.SweepStale(ctx, w.maxAge)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("stale call sweep", "swept", n)
	}
	return nil
}

// Periodic drives the recurring stale-call sweep.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewPeriodic registers the recurring jobs on an asynq scheduler.
func NewPeriodic(cfg Config, log *logger.Logger) (*Periodic, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	sched := asynq.NewScheduler(opt, nil)
	if _, err := sched.Register("@every 30m", NewStaleCallSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: sched, log: log}, nil
}

func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
