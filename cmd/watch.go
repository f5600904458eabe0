// File: cmd/watch.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miniatlas/atlasctl/api/schemas"
	"github.com/miniatlas/atlasctl/internal/archive"
	"github.com/miniatlas/atlasctl/internal/client"
	"github.com/miniatlas/atlasctl/internal/monitor"
	"github.com/miniatlas/atlasctl/internal/observability"
	"github.com/miniatlas/atlasctl/internal/poller"
)

// newWatchCmd attaches to an existing session and follows it to completion.
func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a running session, rendering steps as they happen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := newAPIClient()
			if err != nil {
				return err
			}
			showReasoning, _ := cmd.Flags().GetBool("reasoning")
			doArchive, _ := cmd.Flags().GetBool("archive")
			return followSession(cmd.Context(), api, args[0], followOptions{
				out:           cmd.OutOrStdout(),
				showReasoning: showReasoning,
				archiveFinal:  doArchive,
			})
		},
	}
	watchCmd.Flags().Bool("reasoning", false, "Show the agent's reasoning for each step")
	watchCmd.Flags().Bool("archive", false, "Archive the final transcript to Postgres (requires archive.url)")
	return watchCmd
}

type followOptions struct {
	out           io.Writer
	showReasoning bool
	archiveFinal  bool
}

// finalCapture is a poller observer that retains the last full record and
// the terminal status, for archiving after the loop ends.
type finalCapture struct {
	mu     sync.Mutex
	last   *schemas.Session
	status schemas.SessionStatus
}

func (c *finalCapture) OnUpdate(sess *schemas.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = sess
}

func (c *finalCapture) OnComplete(sessionID string, status schemas.SessionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *finalCapture) OnError(sessionID string, err error) {}

func (c *finalCapture) final() (*schemas.Session, schemas.SessionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.status
}

// followSession runs the polling loop plus the connection indicator until the
// session reaches a terminal status or the context is cancelled. Ctrl+C stops
// watching; the backend session keeps running.
func followSession(ctx context.Context, api *client.Client, sessionID string, opts followOptions) error {
	logger := observability.GetLogger()

	renderer := monitor.NewTranscriptRenderer(opts.out, opts.showReasoning, logger)
	capture := &finalCapture{}

	p := poller.New(api, cfg.Poller.Interval, logger)
	p.Subscribe(renderer)
	p.Subscribe(capture)

	health := monitor.NewHealthIndicator(api, cfg.Poller.HealthInterval, logger)
	health.OnChange(func(connected bool) {
		if connected {
			fmt.Fprintln(opts.out, "[backend connected]")
		} else {
			fmt.Fprintln(opts.out, "[backend disconnected - showing last known state]")
		}
	})

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	g, gctx := errgroup.WithContext(watchCtx)
	g.Go(func() error {
		if err := health.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		p.Start(gctx, sessionID)
		select {
		case <-p.Wait(sessionID):
		case <-gctx.Done():
			p.Stop(sessionID)
		}
		// The session loop is over either way; wind down the health probe.
		cancelWatch()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if ctx.Err() != nil {
		fmt.Fprintf(opts.out, "Stopped watching. The session may still be running: %s\n", sessionID)
		return nil
	}

	if opts.archiveFinal {
		sess, _ := capture.final()
		if sess == nil {
			logger.Warn("nothing to archive; no session record was observed",
				zap.String("session_id", sessionID))
			return nil
		}
		if err := archiveTranscript(ctx, sess); err != nil {
			return err
		}
		fmt.Fprintf(opts.out, "Transcript archived for %s.\n", sessionID)
	}
	return nil
}

// openArchive connects to the configured Postgres archive. The caller owns
// the returned store and must Close it.
func openArchive(ctx context.Context) (*archive.Archive, error) {
	if !cfg.ArchiveEnabled() {
		return nil, fmt.Errorf("archive.url is not configured")
	}
	pool, err := pgxpool.New(ctx, cfg.Archive.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}
	store, err := archive.New(ctx, pool, observability.GetLogger())
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// archiveTranscript stores the final transcript via the configured Postgres
// archive.
func archiveTranscript(ctx context.Context, sess *schemas.Session) error {
	store, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to archive transcript: %w", err)
	}
	return nil
}
