package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/semmidev/strata/internal/adapter/archiver"
	"github.com/semmidev/strata/internal/adapter/executor"
	"github.com/semmidev/strata/internal/adapter/marker"
	"github.com/semmidev/strata/internal/adapter/storage"
	"github.com/semmidev/strata/internal/config"
	"github.com/semmidev/strata/internal/domain"
	"github.com/semmidev/strata/internal/infrastructure/logger"
	"github.com/semmidev/strata/internal/infrastructure/metrics"
	"github.com/semmidev/strata/internal/infrastructure/scheduler"
	"github.com/semmidev/strata/internal/usecase"
)

type App struct {
	config        *config.Config
	logger        *logger.Logger
	markers       domain.MarkerStore
	pool          *executor.Pool
	results       chan domain.JobResult
	dispatcher    *usecase.Dispatcher
	cycle         *usecase.Cycle
	scheduler     *scheduler.Scheduler
	metricsServer *http.Server
	uploadTargets []executor.UploadTarget

	fatal       chan error
	resultsDone chan struct{}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)
	log.Infof("Found %d source(s) configured", len(cfg.Sources))

	markers, err := marker.Open(cfg.Markers)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open marker store: %w", err)
	}
	log.Infof("✓ Marker store: %s (%s)", cfg.Markers.Path, backendName(cfg.Markers.Backend))

	arch, err := archiver.New(cfg.Execution.Format, log)
	if err != nil {
		markers.Close()
		log.Close()
		return nil, fmt.Errorf("failed to initialize archiver: %w", err)
	}

	uploadTargets, notifier := initializeUploadTargets(ctx, cfg, log)

	results := make(chan domain.JobResult, cfg.Execution.Workers)
	pool := executor.New(arch, uploadTargets, cfg.Execution.Workers, results, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	opts := []usecase.DispatcherOption{usecase.WithRecorder(recorder)}
	if notifier != nil {
		opts = append(opts, usecase.WithNotifier(notifier))
	}
	dispatcher := usecase.NewDispatcher(cfg.Descriptors(), markers, pool, results, log, opts...)
	cycle := usecase.NewCycle(usecase.NewTrigger(cfg.TriggerTime()), dispatcher, log, recorder)

	a := &App{
		config:        cfg,
		logger:        log,
		markers:       markers,
		pool:          pool,
		results:       results,
		dispatcher:    dispatcher,
		cycle:         cycle,
		scheduler:     scheduler.New(log.Cron()),
		uploadTargets: uploadTargets,
		fatal:         make(chan error, 1),
	}
	if cfg.Metrics.Listen != "" {
		a.metricsServer = metrics.NewServer(cfg.Metrics.Listen, reg)
	}
	return a, nil
}

func backendName(backend string) string {
	if backend == "" {
		return "file"
	}
	return backend
}

// initializeUploadTargets builds the mirrors of produced archives. The
// first Telegram target also delivers job notifications.
func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]executor.UploadTarget, domain.Notifier) {
	var (
		targets  []executor.UploadTarget
		notifier domain.Notifier
	)

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "local":
			stor, err = storage.NewLocal(targetCfg.Path)
			if err != nil {
				log.Errorf("Failed to initialize local mirror: %v", err)
				continue
			}
			log.Infof("✓ Local mirror enabled (%s)", targetCfg.Path)

		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Infof("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Infof("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			tg, err := storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			if notifier == nil {
				notifier = tg
				log.Infof("✓ Telegram notifications enabled")
			}
			if targetCfg.NotifyOnly {
				continue
			}
			stor = tg
			log.Infof("✓ Telegram upload enabled")

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, executor.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets, notifier
}

// Run blocks until ctx is cancelled or a fatal error occurs. In test mode
// it runs a single cycle covering both backup types and returns.
func (a *App) Run(ctx context.Context) error {
	a.startMetrics()

	if a.config.App.TestMode {
		a.logger.Infof("Test mode: running one cycle for %d source(s) now", len(a.config.Sources))
		return a.cycle.RunOnce(ctx, time.Now())
	}

	a.resultsDone = make(chan struct{})
	go a.consumeResults()

	poll := func(ctx context.Context) error {
		err := a.cycle.Tick(ctx, time.Now())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if err := a.scheduler.Every(a.config.Schedule.PollInterval, poll); err != nil {
		return fmt.Errorf("failed to schedule poll: %w", err)
	}

	// A start after today's trigger time fires without waiting a full interval.
	if err := poll(ctx); err != nil {
		return err
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started: daily at %s, polling every %s", a.config.TriggerTime(), a.config.Schedule.PollInterval)
	a.logger.Infof("Archive destinations: local + %d mirror target(s)", len(a.uploadTargets))

	select {
	case <-ctx.Done():
		return nil
	case err := <-a.scheduler.Errors():
		return err
	case err := <-a.fatal:
		return err
	}
}

// consumeResults advances markers as jobs report. After a fatal marker
// error it keeps draining so workers are not blocked, without touching
// markers again.
func (a *App) consumeResults() {
	defer close(a.resultsDone)

	err := a.dispatcher.Run(context.Background())
	if err == nil {
		return
	}

	a.logger.Errorf("Stopping: %v", err)
	select {
	case a.fatal <- err:
	default:
	}
	for res := range a.results {
		a.logger.Warnf("[%s] Result of %s job %s discarded after fatal error", res.Job.Source.ID, res.Job.Type, res.Handle)
	}
}

func (a *App) startMetrics() {
	if a.metricsServer == nil {
		return
	}
	go func() {
		a.logger.Infof("Metrics server listening on %s", a.metricsServer.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Errorf("Metrics server error: %v", err)
		}
	}()
}

// Shutdown stops polling, lets running jobs finish within the configured
// timeout and records their results before closing the marker store.
func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()

	if a.resultsDone == nil {
		// Test mode, or Run never started: record jobs that still finish.
		a.resultsDone = make(chan struct{})
		go a.consumeResults()
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.config.Execution.ShutdownTimeout)
	defer cancel()
	if err := a.pool.Shutdown(ctx); err != nil {
		a.logger.Warnf("Jobs still running were cancelled: %v", err)
	}

	// Every worker has reported; closing lets the consumer drain and exit.
	close(a.results)
	<-a.resultsDone

	if err := a.dispatcher.FlushNotifications(ctx); err != nil {
		a.logger.Warnf("Pending notifications dropped: %v", err)
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warnf("Failed to stop metrics server: %v", err)
		}
	}

	if err := a.markers.Close(); err != nil {
		a.logger.Errorf("Failed to close marker store: %v", err)
	}
	a.logger.Close()
}
