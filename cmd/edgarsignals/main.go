package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/app"
	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/models"
	"github.com/ternarybob/edgarsignals/internal/server"
	"github.com/ternarybob/edgarsignals/internal/services/runner"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// options holds the flags shared by every subcommand
type options struct {
	configFiles configPaths
	tickers     string
	logLevel    string
	runDate     string
	showVersion bool
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: edgarsignals <run|serve> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "  run     process the watchlist once and publish the digest\n")
	fmt.Fprintf(os.Stderr, "  serve   run on the configured schedule and expose /metrics\n")
}

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	if command == "-v" || command == "-version" || command == "version" {
		fmt.Printf("edgarsignals version %s\n", common.GetVersion())
		return
	}
	if command != "run" && command != "serve" {
		usage()
		os.Exit(2)
	}

	opts := &options{}
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	fs.Var(&opts.configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	fs.Var(&opts.configFiles, "c", "Configuration file path (shorthand)")
	fs.StringVar(&opts.tickers, "tickers", "", "Comma separated tickers (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (overrides config)")
	fs.BoolVar(&opts.showVersion, "v", false, "Print version information")
	if command == "run" {
		fs.StringVar(&opts.runDate, "date", "", "Run date YYYY-MM-DD (defaults to today, UTC)")
	}
	_ = fs.Parse(os.Args[2:])

	if opts.showVersion {
		fmt.Printf("edgarsignals version %s\n", common.GetVersion())
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		}
	}

	config, logger := loadConfig(opts)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	switch command {
	case "run":
		if err := runOnce(application, opts, logger); err != nil {
			logger.Error().Err(err).Msg("Run failed")
			application.Close()
			os.Exit(1)
		}
	case "serve":
		if err := serve(application, logger); err != nil {
			logger.Error().Err(err).Msg("Server failed")
			application.Close()
			os.Exit(1)
		}
	}
}

// loadConfig follows the startup order: defaults -> files -> env -> flags, then logger and banner
func loadConfig(opts *options) (*common.Config, arbor.ILogger) {
	if len(opts.configFiles) == 0 {
		if _, err := os.Stat("edgarsignals.toml"); err == nil {
			opts.configFiles = append(opts.configFiles, "edgarsignals.toml")
		} else if _, err := os.Stat("deployments/local/edgarsignals.toml"); err == nil {
			opts.configFiles = append(opts.configFiles, "deployments/local/edgarsignals.toml")
		}
	}

	config, err := common.LoadFromFiles(opts.configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", opts.configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, opts.tickers, opts.logLevel)

	if err := config.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Configuration is invalid")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	common.PrintBanner(config, logger)

	logger.Info().
		Strs("config_files", opts.configFiles).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	return config, logger
}

// runOnce executes a single daily run; ticker failures are reported in the digest, not as exit status
func runOnce(application *app.App, opts *options, logger arbor.ILogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := application.Run(ctx, runner.RunRequest{RunDate: opts.runDate})
	if err != nil {
		return err
	}

	logger.Info().
		Str("run_id", report.RunID).
		Str("run_date", report.RunDate).
		Int("processed", report.Count(models.OutcomeProcessed)).
		Int("skipped", report.Count(models.OutcomeSkipped)).
		Int("missing", report.Count(models.OutcomeMissing)).
		Int("failed", report.Count(models.OutcomeFailed)).
		Dur("duration", report.Duration).
		Msg("Run finished")

	if report.PublishErr != nil {
		return fmt.Errorf("digest not delivered: %w", report.PublishErr)
	}
	return nil
}

// serve starts the scheduler and HTTP listener and blocks until SIGINT/SIGTERM
func serve(application *app.App, logger arbor.ILogger) error {
	if err := application.StartScheduler(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	srv := server.New(application)
	serverErr := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				serverErr <- fmt.Errorf("server goroutine panicked: %v", r)
			}
		}()

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", application.Config.Server.Host, application.Config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info().Msg("Interrupt signal received")
	case err := <-serverErr:
		return err
	}

	logger.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
	return nil
}
