// File: cmd/resume.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newResumeCmd continues a session that is waiting for human intervention,
// typically after a CAPTCHA was solved in the agent browser.
func newResumeCmd() *cobra.Command {
	resumeCmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a session that is waiting for human input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			note, _ := cmd.Flags().GetString("note")
			resp, err := api.Continue(cmd.Context(), args[0], note)
			if err != nil {
				return err
			}
			if resp.Continued {
				fmt.Fprintf(cmd.OutOrStdout(), "Session resumed: %s\n", resp.SessionID)
			}
			return nil
		},
	}
	resumeCmd.Flags().String("note", "CAPTCHA manually solved", "Note to attach to the resume request")
	return resumeCmd
}
