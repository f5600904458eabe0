// File: cmd/run.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/api/schemas"
	"github.com/miniatlas/atlasctl/internal/config"
	"github.com/miniatlas/atlasctl/internal/observability"
)

// newRunCmd starts a new agent session and optionally follows it.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Start a new agent session against the given URL",
		Example: `  atlasctl run https://example.com --goal "Log in" --goal "Open the dashboard"
  atlasctl run example.com --goal "Accept the cookie banner" --follow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			goals, _ := cmd.Flags().GetStringArray("goal")
			if len(goals) == 0 {
				return fmt.Errorf("at least one --goal is required")
			}
			maxSteps, _ := cmd.Flags().GetInt("max-steps")
			if maxSteps < 1 || maxSteps > 100 {
				return fmt.Errorf("--max-steps must be between 1 and 100")
			}

			// The backend rejects URLs without a scheme; default to https
			// like a browser address bar would.
			target := args[0]
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				target = "https://" + target
			}

			req := &schemas.RunRequest{
				URL:         target,
				Goals:       goals,
				SessionMode: schemas.ModeEphemeral,
				MaxSteps:    maxSteps,
			}
			if persistent, _ := cmd.Flags().GetBool("persistent"); persistent {
				req.SessionMode = schemas.ModePersistent
			}
			if proxy, _ := cmd.Flags().GetString("proxy"); proxy != "" {
				req.Proxy = proxy
			}
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email != "" || password != "" {
				req.Profile = &schemas.SessionProfile{Email: email, Password: password}
			}

			api, err := newAPIClient()
			if err != nil {
				return err
			}

			logger.Info("starting session",
				zap.String("url", target),
				zap.Strings("goals", goals),
				zap.Int("max_steps", maxSteps),
			)

			resp, err := api.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session started: %s\n", resp.SessionID)

			follow, _ := cmd.Flags().GetBool("follow")
			if !follow {
				fmt.Fprintf(out, "Follow it with: atlasctl watch %s\n", resp.SessionID)
				return nil
			}

			showReasoning, _ := cmd.Flags().GetBool("reasoning")
			doArchive, _ := cmd.Flags().GetBool("archive")
			return followSession(ctx, api, resp.SessionID, followOptions{
				out:           out,
				showReasoning: showReasoning,
				archiveFinal:  doArchive,
			})
		},
	}

	runCmd.Flags().StringArrayP("goal", "g", nil, "Goal for the agent (repeatable, at least one required)")
	runCmd.Flags().Int("max-steps", config.DefaultMaxSteps, "Maximum number of agent steps (1-100)")
	runCmd.Flags().String("email", "", "Profile email for the session")
	runCmd.Flags().String("password", "", "Profile password for the session")
	runCmd.Flags().String("proxy", "", "Proxy URL for the agent browser")
	runCmd.Flags().Bool("persistent", false, "Use a persistent session context instead of ephemeral")
	runCmd.Flags().BoolP("follow", "f", false, "Follow the session after starting it")
	runCmd.Flags().Bool("reasoning", false, "Show the agent's reasoning for each step (with --follow)")
	runCmd.Flags().Bool("archive", false, "Archive the final transcript to Postgres (with --follow)")
	return runCmd
}
