// File: internal/monitor/monitor.go

// Package monitor renders polled session state for the terminal. It is the
// only consumer of poller notifications; the poller itself knows nothing
// about presentation.
package monitor

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/api/schemas"
)

// TranscriptRenderer is a poller observer that prints newly observed steps.
// The backend returns the full step list on every poll; the renderer keeps a
// per-session high-water mark so each step is printed exactly once, in order.
type TranscriptRenderer struct {
	mu  sync.Mutex
	out io.Writer
	log *zap.Logger

	showReasoning bool
	// lastPrinted maps session id to the highest step number already shown.
	lastPrinted map[string]int
	// lastStatus lets us announce status transitions (e.g. into
	// waiting_human) once instead of on every poll.
	lastStatus map[string]schemas.SessionStatus
}

// NewTranscriptRenderer creates a renderer writing to out.
func NewTranscriptRenderer(out io.Writer, showReasoning bool, logger *zap.Logger) *TranscriptRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptRenderer{
		out:           out,
		log:           logger.Named("renderer"),
		showReasoning: showReasoning,
		lastPrinted:   make(map[string]int),
		lastStatus:    make(map[string]schemas.SessionStatus),
	}
}

// OnUpdate prints every step not yet shown for this session. Steps are
// immutable once observed, so anything at or below the high-water mark is
// already on screen.
func (r *TranscriptRenderer) OnUpdate(sess *schemas.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mark := r.lastPrinted[sess.SessionID]
	for _, step := range sess.Steps {
		if step.StepNumber <= mark {
			continue
		}
		r.printStep(&step)
		mark = step.StepNumber
	}
	r.lastPrinted[sess.SessionID] = mark

	if prev := r.lastStatus[sess.SessionID]; prev != sess.Status {
		r.lastStatus[sess.SessionID] = sess.Status
		if sess.Status == schemas.StatusWaitingHuman {
			fmt.Fprintf(r.out, "! Session is waiting for human input (CAPTCHA or verification).\n")
			fmt.Fprintf(r.out, "  Resolve it in the agent browser, then run: atlasctl resume %s\n", sess.SessionID)
		}
	}
}

func (r *TranscriptRenderer) printStep(step *schemas.Step) {
	line := fmt.Sprintf("step %d", step.StepNumber)
	if step.Action != nil {
		line += ": " + string(step.Action.Type)
		if step.Action.Selector != "" {
			line += " " + step.Action.Selector
		}
		if step.Action.URL != "" {
			line += " " + step.Action.URL
		}
	}
	fmt.Fprintln(r.out, line)

	if r.showReasoning && step.Reasoning != "" {
		fmt.Fprintf(r.out, "    reasoning: %s\n", step.Reasoning)
	}
	if step.Result != "" {
		fmt.Fprintf(r.out, "    result: %s\n", step.Result)
	}
	if step.Error != "" {
		fmt.Fprintf(r.out, "    error: %s\n", step.Error)
	}
}

// OnComplete prints the terminal status line.
func (r *TranscriptRenderer) OnComplete(sessionID string, status schemas.SessionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch status {
	case schemas.StatusCompleted:
		fmt.Fprintf(r.out, "Session %s completed.\n", sessionID)
	case schemas.StatusFailed:
		fmt.Fprintf(r.out, "Session %s failed.\n", sessionID)
	case schemas.StatusStopped:
		fmt.Fprintf(r.out, "Session %s stopped.\n", sessionID)
	default:
		fmt.Fprintf(r.out, "Session %s ended with status %s.\n", sessionID, status)
	}
}

// OnError prints a one-line poll failure. Stale data stays on screen; the
// next successful poll resumes the transcript where it left off.
func (r *TranscriptRenderer) OnError(sessionID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "poll error: %v\n", err)
}

// StepsShown returns the high-water mark for a session. Zero for unknown ids.
func (r *TranscriptRenderer) StepsShown(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPrinted[sessionID]
}
