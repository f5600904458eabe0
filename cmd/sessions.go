// File: cmd/sessions.go
package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newSessionsCmd lists sessions, either live ones from the backend or rows
// from the Postgres transcript archive.
func newSessionsCmd() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions on the backend or in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if archived, _ := cmd.Flags().GetBool("archived"); archived {
				return listArchived(cmd)
			}
			return listBackend(cmd)
		},
	}
	sessionsCmd.Flags().Bool("archived", false, "List archived transcripts instead of live sessions (requires archive.url)")
	return sessionsCmd
}

func listBackend(cmd *cobra.Command) error {
	api, err := newAPIClient()
	if err != nil {
		return err
	}
	list, err := api.Sessions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list.Sessions) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tSTEPS\tCREATED\tGOALS")
	for _, s := range list.Sessions {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.SessionID, s.Status, s.Steps, created, strings.Join(s.Goals, "; "))
	}
	return w.Flush()
}

func listArchived(cmd *cobra.Command) error {
	ctx := cmd.Context()
	store, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.List(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No archived sessions.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tSTEPS\tARCHIVED\tURL")
	for _, s := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.SessionID, s.Status, s.Steps, s.ArchivedAt.Format("2006-01-02 15:04:05"), s.URL)
	}
	return w.Flush()
}
