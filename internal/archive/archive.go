// File: internal/archive/archive.go

// Package archive persists completed session transcripts to Postgres. The
// backend keeps sessions in memory only; archiving is how a transcript
// survives a backend restart. Entirely optional, enabled by archive.url.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/api/schemas"
)

// DBPool abstracts pgxpool.Pool for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Archive writes transcripts to Postgres.
type Archive struct {
	pool DBPool
	log  *zap.Logger
}

const (
	sqlCreateSessions = `
		CREATE TABLE IF NOT EXISTS archive_sessions (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			url TEXT NOT NULL,
			goals TEXT[] NOT NULL,
			status TEXT NOT NULL,
			current_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			archived_at TIMESTAMPTZ NOT NULL
		)`

	sqlCreateSteps = `
		CREATE TABLE IF NOT EXISTS archive_steps (
			archive_id UUID NOT NULL REFERENCES archive_sessions(id) ON DELETE CASCADE,
			step_number INT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			action_type TEXT NOT NULL DEFAULT '',
			selector TEXT NOT NULL DEFAULT '',
			value TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			screenshot TEXT NOT NULL DEFAULT '',
			duration_ms INT NOT NULL DEFAULT 0,
			PRIMARY KEY (archive_id, step_number)
		)`

	sqlInsertSession = `
		INSERT INTO archive_sessions
			(id, session_id, url, goals, status, current_url, created_at, completed_at, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	sqlListSessions = `
		SELECT s.id, s.session_id, s.url, s.status, s.archived_at,
			(SELECT count(*) FROM archive_steps st WHERE st.archive_id = s.id) AS steps
		FROM archive_sessions s
		ORDER BY s.archived_at DESC`
)

// ArchivedSession is one row of the archive listing.
type ArchivedSession struct {
	ID         uuid.UUID
	SessionID  string
	URL        string
	Status     schemas.SessionStatus
	Steps      int
	ArchivedAt time.Time
}

// New creates an Archive and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping archive database: %w", err)
	}
	return &Archive{pool: pool, log: logger.Named("archive")}, nil
}

// EnsureSchema creates the archive tables when missing. A client tool has no
// migration pipeline, so the schema rides along with the binary.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, sqlCreateSessions); err != nil {
		return fmt.Errorf("failed to create archive_sessions: %w", err)
	}
	if _, err := a.pool.Exec(ctx, sqlCreateSteps); err != nil {
		return fmt.Errorf("failed to create archive_steps: %w", err)
	}
	return nil
}

// Save stores one full transcript in a single transaction and returns the
// archive row id. Sessions may be archived repeatedly (e.g. re-watched); each
// Save produces an independent row.
func (a *Archive) Save(ctx context.Context, sess *schemas.Session) (uuid.UUID, error) {
	if sess == nil || sess.SessionID == "" {
		return uuid.Nil, fmt.Errorf("archive: session with an id is required")
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			a.log.Error("Failed to rollback archive transaction", zap.Error(rollbackErr))
		}
	}()

	id := uuid.New()
	createdAt := sess.CreatedAt.UTC()
	var completedAt any
	if sess.CompletedAt != nil {
		completedAt = sess.CompletedAt.UTC()
	}

	_, err = tx.Exec(ctx, sqlInsertSession,
		id, sess.SessionID, sess.URL, sess.Goals,
		string(sess.Status), sess.CurrentURL,
		createdAt, completedAt, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert archived session: %w", err)
	}

	if len(sess.Steps) > 0 {
		if err := a.copySteps(ctx, tx, id, sess.Steps); err != nil {
			return uuid.Nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	a.log.Info("session archived",
		zap.String("session_id", sess.SessionID),
		zap.String("archive_id", id.String()),
		zap.Int("steps", len(sess.Steps)),
	)
	return id, nil
}

func (a *Archive) copySteps(ctx context.Context, tx pgx.Tx, archiveID uuid.UUID, steps []schemas.Step) error {
	rows := make([][]any, len(steps))
	for i, step := range steps {
		var actionType, selector, value string
		if step.Action != nil {
			actionType = string(step.Action.Type)
			selector = step.Action.Selector
			value = step.Action.Value
		}
		rows[i] = []any{
			archiveID, step.StepNumber, step.Timestamp.UTC(),
			step.Reasoning, actionType, selector, value,
			step.Result, step.Error, step.Screenshot, step.DurationMS,
		}
	}

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"archive_steps"},
		[]string{
			"archive_id", "step_number", "recorded_at",
			"reasoning", "action_type", "selector", "value",
			"result", "error", "screenshot", "duration_ms",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy archived steps: %w", err)
	}
	if int(copied) != len(steps) {
		return fmt.Errorf("mismatch in archived step count: expected %d, got %d", len(steps), copied)
	}
	return nil
}

// List returns archived transcripts, newest first. Repeated archives of the
// same session appear as separate rows.
func (a *Archive) List(ctx context.Context) ([]ArchivedSession, error) {
	rows, err := a.pool.Query(ctx, sqlListSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived sessions: %w", err)
	}
	defer rows.Close()

	var out []ArchivedSession
	for rows.Next() {
		var (
			s      ArchivedSession
			status string
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &s.URL, &status, &s.ArchivedAt, &s.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan archived session: %w", err)
		}
		s.Status = schemas.SessionStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archived sessions: %w", err)
	}
	return out, nil
}

// Close releases the underlying pool.
func (a *Archive) Close() {
	a.pool.Close()
}
