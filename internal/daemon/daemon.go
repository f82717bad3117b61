package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"jumpcut/internal/config"
	"jumpcut/internal/logging"
	"jumpcut/internal/metrics"
	"jumpcut/internal/project"
)

// Daemon owns the run manager, history store, and API server.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *project.Store
	manager *project.Manager
	metrics *metrics.Collector
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	DBPath       string `json:"db_path"`
	LockFilePath string `json:"lock_file_path"`
	ActiveRuns   int    `json:"active_runs"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *project.Store, manager *project.Manager, collector *metrics.Collector, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and manager")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "jumpcutd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		metrics:  collector,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock, fails over leftover records from a
// previous process, and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another jumpcut daemon instance is already running")
	}

	interrupted, err := d.store.MarkInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("fail stale records: %w", err)
	}
	if interrupted > 0 {
		d.logger.Warn("failed records left by previous instance", logging.Int("count", int(interrupted)))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("jumpcut daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()))
	return nil
}

// Stop cancels live runs, shuts down the API server, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.manager.Shutdown()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("jumpcut daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports runtime information for the status endpoint and CLI. The
// active count comes from the manager's live run map; database rows are
// sampled and can lag behind what is actually running.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       filepath.Join(d.cfg.Paths.LogDir, "projects.db"),
		LockFilePath: d.lockPath,
		ActiveRuns:   d.manager.ActiveRuns(),
	}
}
