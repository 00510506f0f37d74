package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tailspot/internal/api"
	"tailspot/internal/config"
	"tailspot/internal/logging"
	"tailspot/internal/match"
	"tailspot/internal/monitor"
	"tailspot/internal/notifications"
	"tailspot/internal/review"
	"tailspot/internal/scrape"
	"tailspot/internal/sources"
	"tailspot/internal/store"
)

// gaugeRefreshInterval bounds how stale the Prometheus gauges can get when
// nothing polls /api/status.
const gaugeRefreshInterval = 15 * time.Second

// Daemon owns the background services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store        *store.Store
	registry     *sources.Registry
	orchestrator *scrape.Orchestrator
	monitor      *monitor.Monitor
	hub          *api.Hub
	api          *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New builds the daemon and everything it runs. The store stays open until
// Close.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	registry := sources.NewRegistry(cfg, logger)
	rescorer := match.NewRescorer(st, cfg, logger)
	mon := monitor.New(st, cfg)
	orch := scrape.New(cfg, st, registry, rescorer, notifier, logger)
	hub := api.NewHub(logger)
	orch.SetEvents(hub)
	mon.Observe(orch)
	reviews := review.NewService(st, cfg, logger)

	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        st,
		registry:     registry,
		orchestrator: orch,
		monitor:      mon,
		hub:          hub,
		api:          api.NewServer(cfg, st, mon, orch, reviews, hub, logger),
		lockPath:     cfg.LockFilePath(),
	}
	d.lock = flock.New(d.lockPath)
	return d, nil
}

// Start acquires the instance lock and launches the services. A second
// daemon on the same data directory fails here instead of corrupting state.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tailspot daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	go d.hub.Run(d.ctx)

	if err := d.orchestrator.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if err := d.api.Start(d.ctx); err != nil {
		d.orchestrator.Stop()
		d.teardown()
		return fmt.Errorf("start api: %w", err)
	}
	go d.refreshGauges(d.ctx)

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("instance", d.orchestrator.InstanceID()),
		logging.String("lock", d.lockPath),
		logging.String("database", d.cfg.DatabasePath()),
		logging.Any("sources", d.registry.Enabled()))
	return nil
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Stop halts background processing and releases the lock. In-flight jobs
// finish their current attempt before workers exit.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orchestrator.Stop()
	d.api.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr reports the bound API address, or empty when the API is disabled
// or the daemon is stopped.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// refreshGauges keeps the Prometheus gauges current between status requests.
func (d *Daemon) refreshGauges(ctx context.Context) {
	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.monitor.Snapshot(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("gauge refresh failed", logging.Error(err))
			}
		}
	}
}
