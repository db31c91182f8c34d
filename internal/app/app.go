// Package app wires configuration, storage and services into a runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/chunker"
	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/handlers"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
	"github.com/ternarybob/edgarsignals/internal/metrics"
	"github.com/ternarybob/edgarsignals/internal/services/alerts"
	"github.com/ternarybob/edgarsignals/internal/services/edgar"
	"github.com/ternarybob/edgarsignals/internal/services/extraction"
	"github.com/ternarybob/edgarsignals/internal/services/llm"
	"github.com/ternarybob/edgarsignals/internal/services/notify"
	"github.com/ternarybob/edgarsignals/internal/services/pipeline"
	"github.com/ternarybob/edgarsignals/internal/services/runner"
	"github.com/ternarybob/edgarsignals/internal/services/scheduler"
	"github.com/ternarybob/edgarsignals/internal/services/transform"
	"github.com/ternarybob/edgarsignals/internal/storage/badger"
	"github.com/ternarybob/edgarsignals/internal/storage/objects"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Objects        *objects.FileStore

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	LLM          *llm.ProviderFactory
	Edgar        *edgar.Client
	Orchestrator *pipeline.Orchestrator
	Composer     *alerts.Composer
	Notifier     interfaces.Notifier
	sinks        int
	Runner       *runner.Runner

	// Set by StartScheduler
	Scheduler  *scheduler.Service
	RunHandler *handlers.RunHandler

	SignalsHandler *handlers.SignalsHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Int("notify_sinks", app.sinks).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens Badger, loads variables and resolves {key} references in config
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	ctx := context.Background()
	if err := a.StorageManager.LoadEnvFile(ctx, ".env"); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load .env into key/value store")
	}
	if err := a.StorageManager.LoadVariablesFromFiles(ctx, a.Config.Variables.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load variables from files")
	}
	if err := a.StorageManager.LoadEmailFromFile(ctx, a.Config.Variables.Dir); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load email configuration")
	}

	kvMap, err := a.StorageManager.KeyValueStorage().GetAll(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch KV map for config replacement, skipping replacement")
	} else if len(kvMap) > 0 {
		if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
		}
	}

	a.Objects, err = objects.NewFileStore(a.Config.Storage.Objects.Dir, a.Logger)
	if err != nil {
		a.StorageManager.Close()
		return fmt.Errorf("failed to open object store: %w", err)
	}

	a.Logger.Debug().
		Str("badger_path", a.Config.Storage.Badger.Path).
		Str("objects_dir", a.Config.Storage.Objects.Dir).
		Msg("Storage layer initialized")
	return nil
}

// initServices builds the pipeline bottom-up: clients, orchestrator, composer, runner
func (a *App) initServices() error {
	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	kv := a.StorageManager.KeyValueStorage()
	a.LLM = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, kv, a.Logger)
	a.Edgar = edgar.NewClientFromConfig(&a.Config.Edgar, a.Logger)

	splitter, err := chunker.New(a.Config.Pipeline.ChunkSize, a.Config.Pipeline.ChunkOverlap)
	if err != nil {
		return err
	}

	a.Orchestrator, err = pipeline.NewOrchestrator(pipeline.Dependencies{
		Source:    a.Edgar,
		Converter: transform.NewService(a.Logger),
		Splitter:  splitter,
		Extractor: extraction.NewAdapter(a.LLM, &a.Config.Pipeline, a.Logger),
		Docs:      a.StorageManager.DocumentStorage(),
		Signals:   a.StorageManager.SignalStorage(),
		Objects:   a.Objects,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})
	if err != nil {
		return err
	}

	a.Composer = alerts.NewComposer(a.StorageManager.SignalStorage(), a.LLM, &a.Config.Pipeline, a.Metrics, a.Logger)
	sinks := a.buildNotifier()
	a.sinks = len(sinks)
	a.Notifier = sinks
	a.Runner = runner.NewRunner(a.Orchestrator, a.Composer, a.Notifier, a.Config.Runner, a.Metrics, a.Logger)
	a.SignalsHandler = handlers.NewSignalsHandler(a.StorageManager.SignalStorage(), a.Objects, a.Logger)
	return nil
}

// buildNotifier selects digest sinks from [notify]; the log sink is used when nothing else is
func (a *App) buildNotifier() notify.MultiNotifier {
	cfg := a.Config.Notify
	var sinks notify.MultiNotifier

	if len(cfg.Recipients) > 0 {
		mail := notify.NewMailNotifier(a.StorageManager.KeyValueStorage(), cfg.Recipients, a.Logger)
		if !mail.IsConfigured(context.Background()) {
			a.Logger.Warn().Msg("Email recipients configured but SMTP settings are incomplete (smtp_host, smtp_username, smtp_password, smtp_from)")
		}
		sinks = append(sinks, mail)
	}
	if cfg.Archive {
		sinks = append(sinks, notify.NewObjectNotifier(a.Objects, a.Logger))
	}
	if cfg.Log || len(sinks) == 0 {
		sinks = append(sinks, notify.NewLogNotifier(a.Logger))
	}
	return sinks
}

// Run executes one daily run
func (a *App) Run(ctx context.Context, req runner.RunRequest) (*runner.RunReport, error) {
	return a.Runner.Run(ctx, req)
}

// StartScheduler starts the cron trigger for daily runs
func (a *App) StartScheduler() error {
	svc, err := scheduler.NewService(a.Config.Scheduler.Schedule, func(ctx context.Context) error {
		report, err := a.Runner.Run(ctx, runner.RunRequest{})
		if err != nil {
			return err
		}
		return report.PublishErr
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Scheduler = svc
	a.RunHandler = handlers.NewRunHandler(svc, a.Logger)

	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled, runs only via POST /api/run")
		return nil
	}
	return svc.Start()
}

// Close stops the scheduler and releases storage
func (a *App) Close() error {
	if a.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Scheduler.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
		}
	}

	if a.LLM != nil {
		a.LLM.Close()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
