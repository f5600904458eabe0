// File: cmd/report.go
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miniatlas/atlasctl/internal/reporting"
)

// newReportCmd fetches a session transcript and writes it to a file.
func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Write a session transcript report to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			api, err := newAPIClient()
			if err != nil {
				return err
			}
			sess, err := api.FullSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			if format == "" {
				format = cfg.Report.Format
			}
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				ext := "md"
				if strings.EqualFold(format, "json") {
					ext = "json"
				}
				output = filepath.Join(cfg.Report.Dir, fmt.Sprintf("%s.%s", sessionID, ext))
			}

			reporter, err := reporting.New(format, output)
			if err != nil {
				return err
			}
			if err := reporter.Write(sess); err != nil {
				reporter.Close()
				return err
			}
			if err := reporter.Close(); err != nil {
				return err
			}

			if output != "stdout" {
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			}
			return nil
		},
	}
	reportCmd.Flags().StringP("format", "f", "", "Report format: markdown or json (default from config)")
	reportCmd.Flags().StringP("output", "o", "", "Output path (default <report.dir>/<session-id>.<ext>, or 'stdout')")
	return reportCmd
}
