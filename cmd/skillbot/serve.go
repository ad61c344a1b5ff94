package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/skillbot/internal/app"
	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/logger"
)

var (
	serveConfigPath string
	serveLogLevel   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start Skillbot (main command)",
	Long: `Start Skillbot with the specified configuration.
This initializes all components (providers, skills, executor, scheduler,
Telegram channel) and handles graceful shutdown on SIGINT/SIGTERM.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	// Secrets referenced from config.toml as ${VAR} live in .env.
	if err := config.LoadEnvOptional("./.env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	configPath := serveConfigPath
	if configPath == "" {
		configPath = "./config.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "❌ Configuration validation failed:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		os.Exit(1)
	}

	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("🚀 Starting Skillbot",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "skills_dir", Value: cfg.Paths.SkillsDir},
		logger.Field{Key: "default_provider", Value: cfg.Providers.Default},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, log)
	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("Application failed", err)
		os.Exit(1)
	}

	log.Info("👋 Skillbot stopped gracefully")
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override logging level (debug, info, warn, error)")
}
