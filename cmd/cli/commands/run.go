package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/pkg/core/autopublish"
)

// RunCmd creates the run command
func RunCmd(app *AppContext) *cobra.Command {
	var nowFlag string
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the auto-publish job once",
		Long:  "Scan recently completed sessions, issue certificates and notify volunteers, then exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if nowFlag != "" {
				parsed, err := time.Parse(time.RFC3339, nowFlag)
				if err != nil {
					return fmt.Errorf("--now must be RFC3339: %w", err)
				}
				now = parsed
			}

			if !app.Cfg.AutoPublish.Enabled && !force {
				fmt.Println("Auto-publish is disabled in the config; pass --force to run anyway.")
				return nil
			}

			if err := app.OpenDatabase(false); err != nil {
				return err
			}
			job, err := app.NewJob()
			if err != nil {
				return err
			}

			app.Logger.Debug("run command", zap.Time("now", now))
			report, err := job.Run(app.Ctx, now)
			if errors.Is(err, autopublish.ErrRunInProgress) {
				fmt.Println("Another auto-publish run is in progress.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("auto-publish failed: %w", err)
			}

			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVar(&nowFlag, "now", "", "Evaluate the scan window as of this RFC3339 instant")
	cmd.Flags().BoolVar(&force, "force", false, "Run even when autoPublish.enabled is false")
	return cmd
}

func printReport(report *autopublish.JobReport) {
	fmt.Printf("\n%s\n\n", report.Message)
	fmt.Printf("Window:       %s → %s\n", report.Window.From.Format(time.RFC3339), report.Window.To.Format(time.RFC3339))
	fmt.Printf("Sessions:     %d (%d published)\n", report.SessionsScanned, report.SessionsSucceeded)
	fmt.Printf("Certificates: %d\n", report.CertificatesCreated)
	fmt.Printf("Emails:       %d\n", report.EmailsSent)
	fmt.Printf("Duration:     %s\n\n", report.Duration.Round(time.Millisecond))

	if len(report.Results) == 0 {
		return
	}

	fmt.Printf("%-8s  %-36s  %-24s  %-5s  %-6s\n", "Result", "Project", "Session", "Certs", "Emails")
	fmt.Println("--------  ------------------------------------  ------------------------  -----  ------")
	for _, r := range report.Results {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Printf("%-8s  %-36s  %-24s  %5d  %6d\n", status, r.ProjectID, r.SessionName, r.CertificatesCreated, r.EmailsSent)
		for _, e := range r.Errors {
			fmt.Printf("          ↳ %s\n", e)
		}
	}
	fmt.Println()
}
