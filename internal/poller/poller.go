// File: internal/poller/poller.go

// Package poller implements the session polling loop: one fixed-interval
// timer per watched session, fetching the full session record and fanning it
// out to registered observers until a terminal status is observed or the
// session is explicitly cancelled.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/api/schemas"
	"github.com/miniatlas/atlasctl/internal/config"
)

// Fetcher is the slice of the API client the poller needs.
type Fetcher interface {
	FullSession(ctx context.Context, sessionID string) (*schemas.Session, error)
}

// Observer receives session lifecycle notifications. Callbacks are invoked
// sequentially from the session's polling goroutine; implementations that
// block will delay subsequent polls for that session only. A callback must
// not call Stop, StopAll, or Start for the session it was invoked for: those
// wait for the polling goroutine to exit, which cannot happen while the
// callback is still running. Stop from any other goroutine is fine.
type Observer interface {
	// OnUpdate delivers each successfully fetched session record, including
	// the final one that carries the terminal status.
	OnUpdate(sess *schemas.Session)
	// OnComplete fires once, after the timer for the session has stopped.
	OnComplete(sessionID string, status schemas.SessionStatus)
	// OnError reports a failed poll. The poller keeps ticking afterwards;
	// every error is surfaced, none is retried with delay.
	OnError(sessionID string, err error)
}

// session tracks one active polling loop.
type session struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller owns all per-session polling timers. Safe for concurrent use.
//
// Per-session state machine: NotPolling -> Polling -> Stopped. The transition
// to Stopped happens on terminal backend status or explicit Stop; there is no
// retry state and no queueing.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	active    map[string]*session
	observers []Observer
}

// New creates a Poller. A non-positive interval falls back to the default
// 2 second cadence.
func New(fetcher Fetcher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = config.DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		log:      logger.Named("poller"),
		active:   make(map[string]*session),
	}
}

// Subscribe registers an observer for all sessions polled by this Poller.
func (p *Poller) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, obs)
}

// Start begins polling the given session. It is idempotent per session id: a
// second Start replaces the previous timer rather than running two
// concurrently. The first poll happens after one interval, matching the
// backend's expectation that a freshly started session has no steps yet.
func (p *Poller) Start(ctx context.Context, sessionID string) {
	p.mu.Lock()
	for {
		old, ok := p.active[sessionID]
		if !ok {
			break
		}
		// Replace, never duplicate. The old loop must fully unwind before
		// the new one is registered so at most one timer exists per id.
		// Re-check after reacquiring the lock in case a concurrent Start
		// installed another loop in the meantime.
		old.cancel()
		p.mu.Unlock()
		<-old.done
		p.mu.Lock()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s := &session{cancel: cancel, done: make(chan struct{})}
	p.active[sessionID] = s
	p.mu.Unlock()

	p.log.Debug("polling started", zap.String("session_id", sessionID))
	go p.loop(loopCtx, sessionID, s)
}

// Stop cancels the timer for the session if one exists and waits for its
// polling goroutine to exit. Calling Stop for an unknown session is a no-op;
// other sessions' timers are never affected. Cancellation is cooperative: an
// in-flight request is not aborted, but no further tick will fire. Must not
// be called from an Observer callback for the same session (see Observer).
func (p *Poller) Stop(sessionID string) {
	p.mu.Lock()
	s, ok := p.active[sessionID]
	p.mu.Unlock()
	if !ok {
		return
	}
	s.cancel()
	<-s.done
}

// StopAll cancels every active timer. Used on shutdown.
func (p *Poller) StopAll() {
	p.mu.Lock()
	all := make([]*session, 0, len(p.active))
	for _, s := range p.active {
		s.cancel()
		all = append(all, s)
	}
	p.mu.Unlock()
	for _, s := range all {
		<-s.done
	}
}

// Wait returns a channel closed when polling for the session ends, whether by
// terminal status, Stop, or context cancellation. For an unknown session the
// returned channel is already closed.
func (p *Poller) Wait(sessionID string) <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.active[sessionID]; ok {
		return s.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Active reports whether a timer currently exists for the session.
func (p *Poller) Active(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[sessionID]
	return ok
}

// ActiveCount returns the number of sessions currently being polled.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// loop is the per-session polling goroutine.
func (p *Poller) loop(ctx context.Context, sessionID string, s *session) {
	defer func() {
		p.mu.Lock()
		// Only deregister if we are still the registered loop; a replacing
		// Start may already have installed a new state for this id.
		if cur, ok := p.active[sessionID]; ok && cur == s {
			delete(p.active, sessionID)
		}
		p.mu.Unlock()
		close(s.done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("polling cancelled", zap.String("session_id", sessionID))
			return
		case <-ticker.C:
			if terminal, status := p.poll(ctx, sessionID); terminal {
				p.log.Info("session reached terminal status",
					zap.String("session_id", sessionID),
					zap.String("status", string(status)),
				)
				p.notifyComplete(sessionID, status)
				return
			}
			// Overlap policy: a tick that fired while the request above was
			// in flight is discarded, so there is never more than one
			// outstanding request per session. Under a slow backend the
			// effective interval degrades to the response time.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// poll performs a single fetch and dispatches the result. It reports whether
// a terminal status was observed.
func (p *Poller) poll(ctx context.Context, sessionID string) (bool, schemas.SessionStatus) {
	sess, err := p.fetcher.FullSession(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown race: the fetch lost to cancellation. Not an error
			// worth surfacing.
			return false, ""
		}
		p.log.Warn("poll failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		p.notifyError(sessionID, err)
		return false, ""
	}

	p.notifyUpdate(sess)
	if sess.Status.IsTerminal() {
		return true, sess.Status
	}
	return false, ""
}

func (p *Poller) snapshot() []Observer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Observer, len(p.observers))
	copy(out, p.observers)
	return out
}

func (p *Poller) notifyUpdate(sess *schemas.Session) {
	for _, obs := range p.snapshot() {
		obs.OnUpdate(sess)
	}
}

func (p *Poller) notifyComplete(sessionID string, status schemas.SessionStatus) {
	for _, obs := range p.snapshot() {
		obs.OnComplete(sessionID, status)
	}
}

func (p *Poller) notifyError(sessionID string, err error) {
	for _, obs := range p.snapshot() {
		obs.OnError(sessionID, err)
	}
}
