package splitter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randompersona1/ussplitter-server/internal/config"
	"github.com/randompersona1/ussplitter-server/internal/engine"
	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/queue"
)

// Worker is the single authorized queue consumer. One background goroutine
// claims the oldest PENDING job, runs the engine synchronously, and records
// the terminal status. The loop outlives any individual job failure.
type Worker struct {
	svc    *Service
	store  *queue.Store
	engine engine.Engine
	logger *slog.Logger

	defaultModel       string
	bitrate            int
	jobs               int
	pollInterval       time.Duration
	errorRetryInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker constructs the worker from configuration.
func NewWorker(cfg *config.Config, svc *Service, store *queue.Store, eng engine.Engine, logger *slog.Logger) *Worker {
	return &Worker{
		svc:                svc,
		store:              store,
		engine:             eng,
		logger:             logging.WithComponent(logger, "worker"),
		defaultModel:       cfg.Engine.DefaultModel,
		bitrate:            cfg.Engine.Bitrate,
		jobs:               cfg.Engine.Jobs,
		pollInterval:       time.Duration(cfg.Worker.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
	}
}

// Start launches the background loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)

	go w.run(runCtx)
	return nil
}

// Stop terminates the loop and waits for it to exit. A separation in
// progress is killed through its command context; the job it interrupts
// stays PROCESSING.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to claim next job", logging.Error(err))
			w.sleep(ctx, w.errorRetryInterval)
			continue
		}
		if job == nil {
			w.sleep(ctx, w.pollInterval)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// process drives one claimed job to a terminal state. Every failure is
// recorded and logged here; nothing propagates out of the loop.
func (w *Worker) process(ctx context.Context, job *queue.QueuedJob) {
	logger := w.logger.With(logging.String("job_id", job.ID))

	// The claim removed the queue row, so a status read in the gap before
	// this write returns NONE. Accepted: separation dwarfs the window.
	if err := w.store.SetStatus(ctx, job.ID, queue.StatusProcessing); err != nil {
		logger.Error("failed to mark job processing", logging.Error(err))
		return
	}

	model := ResolveModel(job.Model, w.engine.Catalog(), w.defaultModel, logger)
	logger.Info("separation started", logging.String("model", model))

	started := time.Now()
	err := w.engine.Separate(ctx, engine.SeparationRequest{
		InputPath: w.svc.InputPath(job.ID),
		OutputDir: w.svc.JobDir(job.ID),
		Bitrate:   w.bitrate,
		Jobs:      w.jobs,
		Model:     model,
	})
	if err != nil {
		logger.Error("separation failed",
			logging.Error(err),
			logging.Duration("duration", time.Since(started)),
		)
		if statusErr := w.store.SetStatus(ctx, job.ID, queue.StatusError); statusErr != nil {
			logger.Error("failed to mark job errored", logging.Error(statusErr))
		}
		return
	}

	if err := w.store.SetStatus(ctx, job.ID, queue.StatusFinished); err != nil {
		// The job now looks stuck in PROCESSING. Not auto-recovered.
		logger.Error("failed to mark job finished", logging.Error(err))
		return
	}
	logger.Info("separation finished", logging.Duration("duration", time.Since(started)))
}
