// File: cmd/delete.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDeleteCmd removes a session from the backend entirely. The backend stops
// the session first if it is still running, so delete doubles as stop+forget.
func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session from the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := api.DeleteSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if resp.Deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Session deleted: %s\n", resp.SessionID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Backend did not confirm the delete for %s\n", args[0])
			}
			return nil
		},
	}
}
