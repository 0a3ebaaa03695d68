package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/volunteer-hours/internal/config"
	"github.com/jakechorley/volunteer-hours/pkg/utils"
)

// AuthorizeCmd creates the authorize command, which stores a Gmail token for the environment
func AuthorizeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Authorize the service to send certificate emails through Gmail",
		Long:  "Runs the Google OAuth flow in a browser and stores the token used by serve and run.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
			if err != nil {
				return fmt.Errorf("failed to load OAuth client config: %w", err)
			}
			oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
			if err != nil {
				return err
			}

			if _, err := utils.GetTokenWithFlow(app.Ctx, oauthConfig, app.Env, app.Logger); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			path, err := utils.TokenFilePath(app.Env)
			if err != nil {
				return err
			}
			fmt.Printf("\n✅ Gmail authorized. Token stored at %s\n\n", path)
			return nil
		},
	}
}
