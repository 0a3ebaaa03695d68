package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/cmd/cli/commands"
	"github.com/jakechorley/volunteer-hours/internal/config"
	"github.com/jakechorley/volunteer-hours/pkg/utils/logging"
)

var (
	env      string
	jsonLogs bool
	debug    bool
	logDir   string
	app      *commands.AppContext
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app = &commands.AppContext{Ctx: ctx}

	rootCmd := &cobra.Command{
		Use:   "volunteer-hours",
		Short: "Volunteer Hours - Automatically publish volunteer hour certificates",
		Long: `Issues volunteer hour certificates for completed QR-code sessions once their
grace period has elapsed, and notifies each volunteer in-app and by email.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
			if app.Logger != nil {
				app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: dev, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write console logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", `Directory for log files ("-" disables file logging)`)

	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.RunCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.AuthorizeCmd(app))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// initApp sets up the logger and configuration
func initApp() error {
	var err error
	app.Env = env

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(env, logging.Options{
		JSONConsole: jsonLogs || app.Cfg.JSONLogs,
		Dir:         logDir,
		Debug:       debug,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))
	app.Logger.Debug("Configuration loaded successfully",
		zap.Bool("auto_publish_enabled", app.Cfg.AutoPublish.Enabled),
		zap.String("email_provider", app.Cfg.Email.Provider),
		zap.Bool("metrics_enabled", app.Cfg.MetricsEnabled))

	return nil
}
