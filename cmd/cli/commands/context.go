package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/internal/config"
	"github.com/jakechorley/volunteer-hours/internal/metrics"
	"github.com/jakechorley/volunteer-hours/pkg/clients/gmailclient"
	"github.com/jakechorley/volunteer-hours/pkg/clients/logsender"
	"github.com/jakechorley/volunteer-hours/pkg/core/autopublish"
	"github.com/jakechorley/volunteer-hours/pkg/postgres"
	"github.com/jakechorley/volunteer-hours/pkg/utils"
)

// AppContext holds the application dependencies shared across all commands.
// Logger and Cfg are set for every command; the rest is opened on demand.
type AppContext struct {
	Env      string
	Cfg      *config.Config
	Logger   *zap.Logger
	Ctx      context.Context
	Database *postgres.DB
	Registry *prometheus.Registry
	Metrics  metrics.Sink
}

// OpenDatabase connects to postgres, optionally applying pending migrations
func (app *AppContext) OpenDatabase(migrate bool) error {
	app.Logger.Info("Connecting to database")
	database, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL, postgres.WithRunLockKey(app.Cfg.RunLockKey))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.Database = database

	if migrate {
		applied, err := database.RunMigrations(app.Ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		app.Logger.Info("Database migrations up to date", zap.Strings("applied", applied))
	}
	return nil
}

// InitMetrics sets up the prometheus registry when metrics are enabled, else a no-op sink
func (app *AppContext) InitMetrics() {
	if !app.Cfg.MetricsEnabled {
		app.Metrics = metrics.NewNoopSink()
		return
	}
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = metrics.NewPrometheusSink(app.Registry, app.Logger)
}

// NewEmailSender returns the configured email transport
func (app *AppContext) NewEmailSender() (autopublish.EmailSender, error) {
	if app.Cfg.Email.Provider == config.EmailProviderLog {
		app.Logger.Info("Emails will be logged, not sent")
		return logsender.New(app.Logger), nil
	}

	app.Logger.Info("Initializing gmail client")
	oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, err
	}
	token, err := utils.LoadToken(app.Ctx, oauthConfig, app.Env, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load gmail token: %w", err)
	}
	client, err := gmailclient.NewClient(app.Ctx, oauthCfg, token, app.Cfg.Email.GmailUserID, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return client, nil
}

// NewJob wires the auto-publish job against the open database
func (app *AppContext) NewJob() (*autopublish.Job, error) {
	if app.Database == nil {
		return nil, fmt.Errorf("database is not open")
	}
	if app.Metrics == nil {
		app.Metrics = metrics.NewNoopSink()
	}

	email, err := app.NewEmailSender()
	if err != nil {
		return nil, err
	}

	settings := app.Cfg.AutoPublishSettings()
	scanner := autopublish.NewScanner(app.Database, settings, app.Logger)
	notifier := autopublish.NewNotifier(app.Database, email, settings, app.Metrics, app.Logger)
	processor := autopublish.NewProcessor(app.Database, notifier, settings, app.Metrics, app.Logger)
	return autopublish.NewJob(scanner, processor, app.Database, settings, app.Metrics, app.Logger), nil
}

// Close releases the database pool
func (app *AppContext) Close() {
	if app.Database != nil {
		app.Database.Close()
	}
}
