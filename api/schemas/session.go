// File: api/schemas/session.go
package schemas

import "time"

// SessionStatus is the lifecycle state of a backend agent session.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusRunning      SessionStatus = "running"
	StatusCompleted    SessionStatus = "completed"
	StatusFailed       SessionStatus = "failed"
	StatusStopped      SessionStatus = "stopped"
	StatusWaitingHuman SessionStatus = "waiting_human"
)

// IsTerminal reports whether the status ends a session. Once a terminal status
// is observed the backend will never mutate the session again, so clients may
// stop polling.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// IsActive reports whether the backend agent loop may still make progress.
// waiting_human is active: the session resumes after operator intervention.
func (s SessionStatus) IsActive() bool {
	return s == StatusRunning || s == StatusWaitingHuman
}

// SessionMode selects backend-side context persistence for a run.
type SessionMode string

const (
	ModeEphemeral  SessionMode = "ephemeral"
	ModePersistent SessionMode = "persistent"
)

// ActionType enumerates the browser actions the backend agent can take.
// The client only renders these; it never executes them.
type ActionType string

const (
	ActionClick             ActionType = "click"
	ActionFill              ActionType = "fill"
	ActionGoto              ActionType = "goto"
	ActionPress             ActionType = "press"
	ActionSelect            ActionType = "select"
	ActionWaitForSelector   ActionType = "wait_for_selector"
	ActionAssertURLIncludes ActionType = "assert_url_includes"
	ActionDone              ActionType = "done"
)

// Action is the structured descriptor of one agent action.
// Selector and Value are populated only for action types that use them.
type Action struct {
	Type     ActionType `json:"action"`
	Selector string     `json:"selector,omitempty"`
	Value    string     `json:"value,omitempty"`
	URL      string     `json:"url,omitempty"`
	Key      string     `json:"key,omitempty"`
	Summary  string     `json:"summary,omitempty"`
}

// Step is one recorded action/observation within a session. Steps are
// immutable once observed; StepNumber increases monotonically.
type Step struct {
	StepNumber int       `json:"step_number"`
	Timestamp  time.Time `json:"timestamp"`
	Reasoning  string    `json:"reasoning,omitempty"`
	Action     *Action   `json:"action,omitempty"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	// Screenshot is a base64-encoded capture of the page at this step.
	Screenshot string `json:"screenshot,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

// SessionProfile carries optional credentials the agent may use on the target.
type SessionProfile struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// Session is the full record of one backend automation run, as returned by
// GET /api/session/{id}/full. The steps slice is append-only from the
// client's perspective.
type Session struct {
	SessionID   string          `json:"session_id"`
	URL         string          `json:"url"`
	Goals       []string        `json:"goals"`
	Profile     *SessionProfile `json:"profile,omitempty"`
	Status      SessionStatus   `json:"status"`
	CurrentURL  string          `json:"current_url,omitempty"`
	Steps       []Step          `json:"steps"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StepsCount returns the number of steps taken so far.
func (s *Session) StepsCount() int {
	return len(s.Steps)
}

// LastError returns the error text of the most recent step, if any.
func (s *Session) LastError() string {
	if len(s.Steps) == 0 {
		return ""
	}
	return s.Steps[len(s.Steps)-1].Error
}

// -- Request / Response Schemas --

// RunRequest starts a new agent session via POST /run.
type RunRequest struct {
	URL         string          `json:"url"`
	Goals       []string        `json:"goals"`
	Profile     *SessionProfile `json:"profile,omitempty"`
	SessionMode SessionMode     `json:"session_mode"`
	Proxy       string          `json:"proxy,omitempty"`
	MaxSteps    int             `json:"max_steps"`
}

// RunResponse acknowledges a started session.
type RunResponse struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
}

// LastAction summarizes the most recent action for the lightweight status view.
type LastAction struct {
	Action    ActionType `json:"action"`
	Selector  string     `json:"selector,omitempty"`
	Value     string     `json:"value,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// StatusResponse is the lightweight view returned by GET /status/{id}.
type StatusResponse struct {
	SessionID  string        `json:"session_id"`
	State      SessionStatus `json:"state"`
	CurrentURL string        `json:"current_url"`
	StepsDone  int           `json:"steps_done"`
	LastAction *LastAction   `json:"last_action,omitempty"`
	HasCaptcha bool          `json:"has_captcha"`
	Error      string        `json:"error,omitempty"`
}

// StopResponse acknowledges POST /stop/{id}.
type StopResponse struct {
	Stopped   bool   `json:"stopped"`
	SessionID string `json:"session_id"`
}

// ContinueRequest resumes a session parked in waiting_human via
// POST /agent/continue/{id}.
type ContinueRequest struct {
	Note string `json:"note,omitempty"`
}

// ContinueResponse acknowledges a resumed session.
type ContinueResponse struct {
	Continued bool   `json:"continued"`
	SessionID string `json:"session_id"`
	Note      string `json:"note,omitempty"`
}

// DeleteResponse acknowledges DELETE /sessions/{id}. The backend stops the
// session first if it is still active, then removes it from storage.
type DeleteResponse struct {
	Deleted   bool   `json:"deleted"`
	SessionID string `json:"session_id"`
}

// SessionSummary is one entry of the GET /sessions listing.
type SessionSummary struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	Goals     []string      `json:"goals"`
	Steps     int           `json:"steps"`
	CreatedAt time.Time     `json:"created_at"`
}

// SessionList wraps the GET /sessions response.
type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status string `json:"status"`
}
