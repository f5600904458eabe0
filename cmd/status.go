// File: cmd/status.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStatusCmd prints the lightweight status view for one session.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the current status of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			st, err := api.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", st.SessionID)
			fmt.Fprintf(out, "State:    %s\n", st.State)
			fmt.Fprintf(out, "URL:      %s\n", st.CurrentURL)
			fmt.Fprintf(out, "Steps:    %d\n", st.StepsDone)
			if st.LastAction != nil {
				line := string(st.LastAction.Action)
				if st.LastAction.Selector != "" {
					line += " " + st.LastAction.Selector
				}
				fmt.Fprintf(out, "Last:     %s\n", line)
			}
			if st.HasCaptcha {
				fmt.Fprintf(out, "CAPTCHA:  waiting for human (run: atlasctl resume %s)\n", st.SessionID)
			}
			if st.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", st.Error)
			}
			return nil
		},
	}
}
