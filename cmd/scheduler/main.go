package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/engage-agent/internal/activity"
	"github.com/engage-agent/internal/config"
	"github.com/engage-agent/internal/engine/autopost"
	"github.com/engage-agent/internal/engine/evaluate"
	"github.com/engage-agent/internal/engine/scrape"
	"github.com/engage-agent/internal/oracle"
	"github.com/engage-agent/internal/pipeline"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/internal/platform/linkedin"
	"github.com/engage-agent/internal/platform/pinterest"
	"github.com/engage-agent/internal/platform/quora"
	"github.com/engage-agent/internal/platform/reddit"
	"github.com/engage-agent/internal/platform/twitter"
	"github.com/engage-agent/internal/platform/youtube"
	"github.com/engage-agent/internal/scheduler"
	"github.com/engage-agent/internal/session"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/internal/storage/sqlite"
	"github.com/engage-agent/pkg/logger"
	"github.com/engage-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "engage-scheduler",
		Short: "Background scheduler for the engagement agent",
		Long: `Runs per-workspace discovery, evaluation, and posting cycles in the
background. This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting engagement agent scheduler")

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Health check server for the hosting platform
	go startHealthServer()

	manager := scheduler.NewManager(repo, buildPipeline(repo), log)

	// Schedule every active workspace
	ctx := context.Background()
	workspaces, err := repo.ListActiveWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workspaces: %w", err)
	}
	for _, ws := range workspaces {
		if err := manager.Start(ctx, ws.WorkspaceID); err != nil {
			log.Error().Err(err).Str("workspace_id", ws.WorkspaceID).Msg("Failed to schedule workspace")
		}
	}
	log.Info().Int("workspaces", len(workspaces)).Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	manager.ShutdownAll()

	return nil
}

// buildPipeline wires the full cycle from configuration
func buildPipeline(repo storage.Repository) *pipeline.Pipeline {
	limiter := ratelimit.NewDefaultLimiter()

	registry := platform.NewRegistry()
	registry.Register(reddit.New(limiter, log))
	registry.Register(twitter.New(limiter, log))
	registry.Register(linkedin.New(limiter, log))
	registry.Register(quora.New(limiter, log))
	registry.Register(pinterest.New(limiter, log))
	registry.Register(youtube.New(limiter, log))

	sessions := session.NewStore(repo, log)

	var transports []oracle.Transport
	if cfg.Anthropic.APIKey != "" {
		transports = append(transports, oracle.NewAnthropicTransport(oracle.AnthropicConfig{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
			Timeout:   cfg.Anthropic.Timeout,
		}, limiter, log))
	}
	if cfg.OracleCLI.Command != "" {
		transports = append(transports, oracle.NewCLITransport(oracle.CLIConfig{
			Command: cfg.OracleCLI.Command,
			Args:    cfg.OracleCLI.Args,
			Timeout: cfg.OracleCLI.Timeout,
		}, log))
	}
	o := oracle.New(log, transports...)

	sink := buildActivitySink()

	scraper := scrape.New(repo, registry, sessions, log)
	evaluator := evaluate.NewRunner(repo, evaluate.New(o, log), sink, log)
	poster := autopost.New(repo, registry, sessions, sink, cfg.AutoPost.InterPostDelay, log)

	return pipeline.New(scraper, evaluator, poster, log)
}

// buildActivitySink combines the log sink with the optional Sheets sink
func buildActivitySink() activity.Sink {
	logSink := activity.NewLogSink(log)
	if !cfg.Activity.SheetsEnabled || cfg.Activity.SpreadsheetID == "" {
		return logSink
	}

	sheetsSink, err := activity.NewSheetsSink(activity.SheetsConfig{
		SpreadsheetID:      cfg.Activity.SpreadsheetID,
		SheetName:          cfg.Activity.SheetName,
		CredentialsFile:    cfg.Activity.CredentialsFile,
		ServiceAccountJSON: cfg.Activity.ServiceAccountJSON,
	}, log)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create Sheets activity sink")
		return logSink
	}
	return activity.NewMultiSink(logSink, sheetsSink)
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer() {
	port := cfg.Server.HealthPort

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Engagement Agent Scheduler"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
