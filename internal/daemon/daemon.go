package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/randompersona1/ussplitter-server/internal/config"
	"github.com/randompersona1/ussplitter-server/internal/engine"
	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/queue"
	"github.com/randompersona1/ussplitter-server/internal/server"
	"github.com/randompersona1/ussplitter-server/internal/splitter"
)

const shutdownGrace = 5 * time.Second

// Daemon owns the lifecycle of every component. Start brings them up in
// dependency order; Stop tears them down in reverse.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	running  bool
	store    *queue.Store
	worker   *splitter.Worker
	listener net.Listener
	server   *http.Server
	serveErr chan error
}

// New constructs an unstarted daemon.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "ussplitterd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		lockPath: lockPath,
	}, nil
}

// Start acquires the instance lock, opens the store, launches the worker,
// and begins serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	d.lock = flock.New(d.lockPath)
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ussplitterd instance is already running")
	}

	store, err := queue.Open(d.cfg)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}

	eng := engine.NewDemucs(
		engine.WithBinary(d.cfg.Engine.Binary),
		engine.WithCatalog(engine.DefaultCatalog(d.cfg.Engine.ExtraModels...)),
	)
	svc := splitter.NewService(d.cfg, store, d.logger)
	worker := splitter.NewWorker(d.cfg, svc, store, eng, d.logger)

	listener, err := net.Listen("tcp", d.cfg.Server.Bind)
	if err != nil {
		_ = store.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("listen on %s: %w", d.cfg.Server.Bind, err)
	}

	if err := worker.Start(ctx); err != nil {
		_ = listener.Close()
		_ = store.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}

	httpSrv := &http.Server{
		Handler:           server.NewRouter(d.cfg, svc, eng, d.logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	d.store = store
	d.worker = worker
	d.listener = listener
	d.server = httpSrv
	d.serveErr = serveErr
	d.running = true

	d.logger.Info("daemon started",
		logging.String("bind", listener.Addr().String()),
		logging.String("data_dir", d.cfg.Paths.DataDir),
		logging.String("engine", d.cfg.Engine.Binary),
	)
	return nil
}

// Stop shuts the HTTP server down with a grace period, stops the worker,
// closes the store, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("http shutdown", logging.Error(err))
	}

	d.worker.Stop()

	if err := d.store.Close(); err != nil {
		d.logger.Warn("close store", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock", logging.Error(err))
	}

	d.store = nil
	d.worker = nil
	d.listener = nil
	d.server = nil
	d.serveErr = nil
	d.running = false
	d.logger.Info("daemon stopped")
}

// Addr reports the bound listen address, empty when not running.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Run starts the daemon and blocks until the context is cancelled or the
// HTTP server fails.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	d.mu.Lock()
	serveErr := d.serveErr
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-serveErr:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}
