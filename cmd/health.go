// File: cmd/health.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miniatlas/atlasctl/internal/monitor"
	"github.com/miniatlas/atlasctl/internal/observability"
)

// newHealthCmd probes the backend once and reports connectivity.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the backend is reachable and healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			indicator := monitor.NewHealthIndicator(api, cfg.Poller.HealthInterval, observability.GetLogger())
			if indicator.Probe(cmd.Context()) {
				fmt.Fprintf(cmd.OutOrStdout(), "Backend healthy at %s\n", api.BaseURL())
				return nil
			}
			return fmt.Errorf("backend at %s is not healthy", api.BaseURL())
		},
	}
}
