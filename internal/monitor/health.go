// File: internal/monitor/health.go
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/api/schemas"
	"github.com/miniatlas/atlasctl/internal/config"
)

// HealthChecker is the slice of the API client the indicator needs.
type HealthChecker interface {
	Health(ctx context.Context) (*schemas.HealthResponse, error)
}

// HealthIndicator maintains a connected/disconnected flag by probing
// GET /health on a fixed interval. State transitions are announced exactly
// once per flip; steady state is silent.
type HealthIndicator struct {
	checker  HealthChecker
	interval time.Duration
	log      *zap.Logger

	mu        sync.Mutex
	connected bool
	checked   bool
	// onChange, when set, is called on every transition with the new state.
	onChange func(connected bool)
}

// NewHealthIndicator builds an indicator. A non-positive interval falls back
// to the default probe cadence.
func NewHealthIndicator(checker HealthChecker, interval time.Duration, logger *zap.Logger) *HealthIndicator {
	if interval <= 0 {
		interval = config.DefaultHealthInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthIndicator{
		checker:  checker,
		interval: interval,
		log:      logger.Named("health"),
	}
}

// OnChange registers a transition callback. Must be called before Run.
func (h *HealthIndicator) OnChange(fn func(connected bool)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Connected reports the last observed backend state. Before the first probe
// completes it returns false.
func (h *HealthIndicator) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Run probes immediately, then on every interval until ctx is cancelled.
// Always returns ctx.Err(); individual probe failures only flip the flag.
func (h *HealthIndicator) Run(ctx context.Context) error {
	h.probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.probe(ctx)
		}
	}
}

// Probe performs a single health check and updates the indicator. Exposed
// for one-shot use by the health command.
func (h *HealthIndicator) Probe(ctx context.Context) bool {
	h.probe(ctx)
	return h.Connected()
}

func (h *HealthIndicator) probe(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	resp, err := h.checker.Health(ctx)
	// Any transport error or non-2xx marks the backend disconnected; a
	// reachable backend reporting an unexpected status string does too.
	up := err == nil && healthyStatus(resp.Status)
	h.set(up, err)
}

func healthyStatus(s string) bool {
	switch strings.ToLower(s) {
	case "ok", "healthy", "running":
		return true
	}
	return false
}

func (h *HealthIndicator) set(up bool, cause error) {
	h.mu.Lock()
	changed := !h.checked || h.connected != up
	h.checked = true
	h.connected = up
	fn := h.onChange
	h.mu.Unlock()

	if !changed {
		return
	}
	if up {
		h.log.Info("backend connected")
	} else {
		h.log.Warn("backend disconnected", zap.Error(cause))
	}
	if fn != nil {
		fn(up)
	}
}
