package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/volunteer-hours/internal/api"
	"github.com/jakechorley/volunteer-hours/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd creates the serve command, which exposes the cron endpoint and runs the in-process schedule
func ServeCmd(app *AppContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auto-publish HTTP endpoint",
		Long: `Starts the HTTP server exposing POST /api/cron/auto-publish, /health and /metrics.
If schedule.cron or schedule.rrule is configured the job also runs in-process on that schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Cfg.HTTPAddr
			}

			app.InitMetrics()
			if err := app.OpenDatabase(true); err != nil {
				return err
			}
			job, err := app.NewJob()
			if err != nil {
				return err
			}

			handler := api.NewHandler(job, app.Cfg.AutoPublish.Enabled, app.Metrics, app.Logger).
				WithHealthChecker(app.Database)

			sched, err := scheduler.Parse(app.Cfg.Schedule.Cron, app.Cfg.Schedule.RRule, app.Cfg.ScheduleLocation(), time.Now())
			if err != nil {
				return fmt.Errorf("invalid schedule: %w", err)
			}
			var runner *scheduler.Scheduler
			if sched != nil {
				runner = scheduler.New(sched, job, app.Logger)
				handler = handler.WithSchedule(runner)
			}

			var gatherer prometheus.Gatherer
			if app.Registry != nil {
				gatherer = app.Registry
			}
			server := api.NewServer(handler, app.Cfg.CronSecret, gatherer, app.Logger)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(app.Ctx)

			g.Go(func() error {
				app.Logger.Info("HTTP server listening", zap.String("addr", addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				app.Logger.Info("Shutting down HTTP server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			switch {
			case runner == nil:
				app.Logger.Info("No schedule configured, waiting for external triggers")
			case !app.Cfg.AutoPublish.Enabled:
				app.Logger.Info("Auto-publish disabled, in-process schedule not started",
					zap.String("schedule", runner.Describe()))
			default:
				g.Go(func() error {
					if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to httpAddr from the config)")
	return cmd
}
