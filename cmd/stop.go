// File: cmd/stop.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newStopCmd asks the backend to terminate a running session.
func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <session-id>",
		Short: "Stop a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := api.Stop(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if resp.Stopped {
				fmt.Fprintf(cmd.OutOrStdout(), "Session stopped: %s\n", resp.SessionID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Backend did not confirm the stop for %s\n", args[0])
			}
			return nil
		},
	}
}
