// File: internal/reporting/reporter_test.go
package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniatlas/atlasctl/api/schemas"
)

func sampleSession() *schemas.Session {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	done := created.Add(45 * time.Second)
	return &schemas.Session{
		SessionID:   "sess_report",
		URL:         "https://example.com",
		Goals:       []string{"Log in", "Open the dashboard"},
		Status:      schemas.StatusCompleted,
		CurrentURL:  "https://example.com/dashboard",
		CreatedAt:   created,
		CompletedAt: &done,
		Steps: []schemas.Step{
			{
				StepNumber: 1,
				Reasoning:  "The login form is the obvious entry point.",
				Action:     &schemas.Action{Type: schemas.ActionFill, Selector: "#email", Value: "user@example.com"},
				Result:     "filled",
			},
			{
				StepNumber: 2,
				Action:     &schemas.Action{Type: schemas.ActionClick, Selector: "#submit"},
				Result:     "clicked | submitted",
			},
		},
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported report format")
}

func TestMarkdownReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")

	r, err := New("markdown", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleSession()))
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(raw)

	assert.Contains(t, md, "# Session sess_report")
	assert.Contains(t, md, "- **Status**: completed")
	assert.Contains(t, md, "1. Log in")
	assert.Contains(t, md, "2. Open the dashboard")
	assert.Contains(t, md, "| 1 | fill | #email | filled |")
	assert.Contains(t, md, "**Step 1**: The login form is the obvious entry point.")
	// Pipes in free text must not break the table.
	assert.Contains(t, md, `clicked \| submitted`)
}

func TestMarkdownReportEmptySession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.md")

	r, err := New("md", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(&schemas.Session{SessionID: "sess_empty", Status: schemas.StatusStopped}))
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "_No steps recorded._")
}

func TestJSONReportRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	r, err := New("json", path)
	require.NoError(t, err)
	require.NoError(t, r.Write(sampleSession()))
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var sess schemas.Session
	require.NoError(t, json.Unmarshal(raw, &sess))
	assert.Equal(t, "sess_report", sess.SessionID)
	assert.Equal(t, 2, sess.StepsCount())
	assert.Equal(t, schemas.StatusCompleted, sess.Status)
}

func TestNewFailsOnUnwritablePath(t *testing.T) {
	_, err := New("json", filepath.Join(t.TempDir(), "missing", "nested", "report.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}
