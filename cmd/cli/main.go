package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/engage-agent/internal/activity"
	"github.com/engage-agent/internal/config"
	"github.com/engage-agent/internal/engine/autopost"
	"github.com/engage-agent/internal/engine/evaluate"
	"github.com/engage-agent/internal/engine/scrape"
	"github.com/engage-agent/internal/models"
	"github.com/engage-agent/internal/oracle"
	"github.com/engage-agent/internal/pipeline"
	"github.com/engage-agent/internal/platform"
	"github.com/engage-agent/internal/platform/linkedin"
	"github.com/engage-agent/internal/platform/pinterest"
	"github.com/engage-agent/internal/platform/quora"
	"github.com/engage-agent/internal/platform/reddit"
	"github.com/engage-agent/internal/platform/twitter"
	"github.com/engage-agent/internal/platform/youtube"
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
		Use:   "engage-agent",
		Short: "Social engagement agent powered by AI",
		Long: `An autonomous agent that discovers relevant conversations across social
platforms, evaluates them with Claude AI, and posts approved replies.`,
		PersistentPreRunE: initializeApp,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(autopostCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(itemsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// components bundles the wired services the subcommands share
type components struct {
	registry  *platform.Registry
	sessions  *session.Store
	scraper   *scrape.Orchestrator
	evaluator *evaluate.Runner
	poster    *autopost.Engine
	pipeline  *pipeline.Pipeline
}

func buildComponents() *components {
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

	sink := activity.NewLogSink(log)

	scraper := scrape.New(repo, registry, sessions, log)
	evaluator := evaluate.NewRunner(repo, evaluate.New(o, log), sink, log)
	poster := autopost.New(repo, registry, sessions, sink, cfg.AutoPost.InterPostDelay, log)

	return &components{
		registry:  registry,
		sessions:  sessions,
		scraper:   scraper,
		evaluator: evaluator,
		poster:    poster,
		pipeline:  pipeline.New(scraper, evaluator, poster, log),
	}
}

func loadSettings(ctx context.Context, workspaceID string) (*models.WorkspaceSettings, error) {
	settings, err := repo.GetWorkspaceSettings(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %q: %w", workspaceID, err)
	}
	return settings, nil
}

func printErrors(errors []string) {
	if len(errors) == 0 {
		return
	}
	fmt.Printf("\nErrors:\n")
	for _, e := range errors {
		fmt.Printf("  - %s\n", e)
	}
}

// ============ WORKSPACE COMMAND ============

func workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Workspace management commands",
	}
	cmd.AddCommand(workspaceInitCmd())
	return cmd
}

func workspaceInitCmd() *cobra.Command {
	var workspaceID, name, profile string
	var keywords, platforms []string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or update a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := repo.GetWorkspaceSettings(ctx, workspaceID)
			if err != nil {
				settings = &models.WorkspaceSettings{WorkspaceID: workspaceID}
			}
			settings.Active = true
			if name != "" {
				settings.Name = name
			}
			if profile != "" {
				settings.Profile = profile
			}
			if len(keywords) > 0 {
				settings.Keywords = keywords
			}
			if len(platforms) > 0 {
				settings.EnabledPlatforms = platforms
			}

			if err := repo.SaveWorkspaceSettings(ctx, settings); err != nil {
				return fmt.Errorf("failed to save workspace: %w", err)
			}

			fmt.Printf("Workspace %q saved.\n", workspaceID)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&profile, "profile", "", "business profile used in evaluation prompts")
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "discovery keywords")
	cmd.Flags().StringSliceVar(&platforms, "platforms", nil, "enabled platforms")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

// ============ RUN COMMAND ============

func runCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full scrape/evaluate/post cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := loadSettings(ctx, workspaceID)
			if err != nil {
				return err
			}

			result, err := buildComponents().pipeline.RunCycle(ctx, settings)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Cycle Results ===\n")
			fmt.Printf("Discovered: %d\n", result.Discovered)
			fmt.Printf("New Items:  %d\n", result.NewItems)
			fmt.Printf("Evaluated:  %d\n", result.Evaluated)
			fmt.Printf("Approved:   %d\n", result.Approved)
			fmt.Printf("Posted:     %d\n", result.Posted)
			fmt.Printf("Skipped:    %d\n", result.Skipped)
			fmt.Printf("Duration:   %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
			printErrors(result.Errors)

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

// ============ STAGE COMMANDS ============

func scrapeCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run discovery across enabled platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := loadSettings(ctx, workspaceID)
			if err != nil {
				return err
			}

			result, err := buildComponents().scraper.Run(ctx, settings)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Scrape Results ===\n")
			fmt.Printf("Discovered: %d\n", result.Discovered)
			fmt.Printf("New Items:  %d\n", result.New)
			printErrors(result.Errors)

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

func evaluateCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate pending items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := loadSettings(ctx, workspaceID)
			if err != nil {
				return err
			}

			result, err := buildComponents().evaluator.Run(ctx, settings)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Evaluation Results ===\n")
			fmt.Printf("Selected:      %d\n", result.Selected)
			fmt.Printf("Evaluated:     %d\n", result.Evaluated)
			fmt.Printf("Approved:      %d\n", result.Approved)
			fmt.Printf("Opportunities: %d\n", result.Opportunities)
			printErrors(result.Errors)

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

func autopostCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "autopost",
		Short: "Post approved replies within daily caps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			settings, err := loadSettings(ctx, workspaceID)
			if err != nil {
				return err
			}

			result, err := buildComponents().poster.Run(ctx, settings)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Auto-Post Results ===\n")
			fmt.Printf("Considered: %d\n", result.Considered)
			fmt.Printf("Posted:     %d\n", result.Posted)
			fmt.Printf("Skipped:    %d\n", result.Skipped)
			printErrors(result.Errors)

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

// ============ VERIFY COMMAND ============

// secretsFile is the on-disk format the verify command reads
type secretsFile struct {
	Secrets map[string]string     `json:"secrets"`
	Cookies []models.CookieRecord `json:"cookies"`
}

func verifyCmd() *cobra.Command {
	var workspaceID, platformName, secretsPath string
	var accountIndex int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a credential bundle and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c := buildComponents()

			adapter := c.registry.Get(platformName)
			if adapter == nil {
				return fmt.Errorf("unknown platform %q", platformName)
			}

			data, err := os.ReadFile(secretsPath)
			if err != nil {
				return fmt.Errorf("failed to read secrets file: %w", err)
			}
			var sf secretsFile
			if err := json.Unmarshal(data, &sf); err != nil {
				return fmt.Errorf("failed to parse secrets file: %w", err)
			}

			cred := &models.Credential{
				WorkspaceID:  workspaceID,
				Platform:     platformName,
				AccountIndex: accountIndex,
				Secrets:      sf.Secrets,
				Cookies:      sf.Cookies,
			}

			if missing := platform.MissingFields(cred, adapter.RequiredFields()); len(missing) > 0 {
				return fmt.Errorf("missing required fields: %v", missing)
			}

			identity, err := adapter.Verify(ctx, cred)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}

			cred.Username = identity.Username
			cred.DisplayName = identity.DisplayName
			cred.AccountRef = identity.AccountRef

			if err := c.sessions.Put(ctx, cred); err != nil {
				return err
			}

			if err := repo.SaveAccount(ctx, &models.SocialAccount{
				WorkspaceID:  workspaceID,
				Platform:     platformName,
				AccountIndex: accountIndex,
				Username:     identity.Username,
				Active:       true,
			}); err != nil {
				return fmt.Errorf("failed to save account: %w", err)
			}

			fmt.Printf("\n=== Verified ===\n")
			fmt.Printf("Platform: %s\n", platformName)
			fmt.Printf("Username: %s\n", identity.Username)
			if identity.DisplayName != "" {
				fmt.Printf("Name:     %s\n", identity.DisplayName)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.Flags().StringVar(&platformName, "platform", "", "platform name")
	cmd.Flags().StringVar(&secretsPath, "secrets-file", "", "JSON file with secrets and cookies")
	cmd.Flags().IntVar(&accountIndex, "account", 0, "account index")
	cmd.MarkFlagRequired("workspace")
	cmd.MarkFlagRequired("platform")
	cmd.MarkFlagRequired("secrets-file")
	return cmd
}

// ============ HEALTH COMMAND ============

func healthCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show credential health per account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c := buildComponents()

			settings, err := loadSettings(ctx, workspaceID)
			if err != nil {
				return err
			}

			accounts, err := repo.ListAccounts(ctx, workspaceID)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			monitor := session.NewMonitor(c.sessions, c.registry, cfg.Session.StaleAfter)
			report := monitor.Report(ctx, settings, accounts)

			fmt.Printf("\n=== Credential Health ===\n")
			if len(report) == 0 {
				fmt.Println("No enabled platforms.")
				return nil
			}
			for _, h := range report {
				verified := "never"
				if h.VerifiedAt != nil {
					verified = h.VerifiedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-10s #%d  %-8s  user=%s  verified=%s\n",
					h.Platform, h.AccountIndex, h.Status, h.Username, verified)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

// ============ ITEMS COMMAND ============

func itemsCmd() *cobra.Command {
	var workspaceID, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List discovered items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			filter := storage.DefaultItemFilter(workspaceID)
			filter.Limit = limit
			if status != "" {
				s := models.ItemStatus(status)
				filter.Status = &s
			}

			items, err := repo.ListItems(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			fmt.Printf("\n=== Items (%d) ===\n", len(items))
			for _, item := range items {
				fmt.Printf("[%d] %-10s %-10s score=%-3d %s\n",
					item.ID, item.Platform, item.Status, item.Score, item.URL)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace ID")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "max items to list")
	cmd.MarkFlagRequired("workspace")
	return cmd
}
