// File: internal/client/client.go

// Package client is the thin REST adapter over the mini-Atlas backend. It maps
// one method to one endpoint and surfaces HTTP and transport errors verbatim;
// all retry policy lives with the callers (the poller retries implicitly on its
// next tick, one-shot commands do not retry at all).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/miniatlas/atlasctl/api/schemas"
	"github.com/miniatlas/atlasctl/internal/config"
)

// Transport defaults tuned for a chatty localhost API: short dial and header
// timeouts, a small keep-alive pool sized for one poll loop plus occasional
// one-shot commands.
const (
	defaultDialTimeout           = 5 * time.Second
	defaultKeepAliveInterval     = 15 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second

	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 30 * time.Second

	// maxErrorBodyBytes caps how much of an error response body is retained
	// for display. Backend error details are short JSON blobs.
	maxErrorBodyBytes = 4 << 10
)

// fastjson decodes response bodies. Session payloads carry base64 screenshots
// per step, so decode throughput matters on the poll path.
var fastjson = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrSessionNotFound marks 404 responses for session-scoped endpoints.
var ErrSessionNotFound = errors.New("session not found")

// APIError is a non-2xx response from the backend. It is distinct from
// transport errors (backend unreachable), which surface as *url.Error.
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend returned %d for %s: %s", e.StatusCode, e.Endpoint, e.Body)
	}
	return fmt.Sprintf("backend returned %d for %s", e.StatusCode, e.Endpoint)
}

// IsConnectivityError reports whether err is a transport-level failure
// (backend unreachable) rather than an application-level rejection. Used by
// the health indicator to distinguish "disconnected" from "unhealthy".
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Client talks to one backend instance. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New builds a Client from configuration. The base URL is normalized to have
// no trailing slash so path joining stays predictable.
func New(cfg config.APIConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("client: base URL must not be empty")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("client: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: newTransport(),
		},
		limiter: limiter,
		log:     logger.Named("client"),
	}, nil
}

// newTransport builds the tuned http.Transport shared by all requests.
func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   defaultDialTimeout,
		KeepAlive: defaultKeepAliveInterval,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
	}
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// -- Endpoint wrappers --

// Health probes GET /health. Used only to toggle the connection indicator.
func (c *Client) Health(ctx context.Context) (*schemas.HealthResponse, error) {
	var out schemas.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Run starts a new agent session via POST /run and returns the backend
// assigned session id.
func (c *Client) Run(ctx context.Context, req *schemas.RunRequest) (*schemas.RunResponse, error) {
	if req == nil || req.URL == "" {
		return nil, fmt.Errorf("client: run request requires a URL")
	}
	if len(req.Goals) == 0 {
		return nil, fmt.Errorf("client: run request requires at least one goal")
	}
	var out schemas.RunResponse
	if err := c.do(ctx, http.MethodPost, "/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the lightweight session view via GET /status/{id}.
func (c *Client) Status(ctx context.Context, sessionID string) (*schemas.StatusResponse, error) {
	var out schemas.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, sessionErr(err, sessionID)
	}
	return &out, nil
}

// FullSession fetches the complete session record, including all steps and
// screenshots, via GET /api/session/{id}/full. This is the poll endpoint.
func (c *Client) FullSession(ctx context.Context, sessionID string) (*schemas.Session, error) {
	var out schemas.Session
	if err := c.do(ctx, http.MethodGet, "/api/session/"+url.PathEscape(sessionID)+"/full", nil, &out); err != nil {
		return nil, sessionErr(err, sessionID)
	}
	return &out, nil
}

// Stop requests termination of a running session via POST /stop/{id}.
func (c *Client) Stop(ctx context.Context, sessionID string) (*schemas.StopResponse, error) {
	var out schemas.StopResponse
	if err := c.do(ctx, http.MethodPost, "/stop/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, sessionErr(err, sessionID)
	}
	return &out, nil
}

// Continue resumes a session parked in waiting_human via
// POST /agent/continue/{id}.
func (c *Client) Continue(ctx context.Context, sessionID, note string) (*schemas.ContinueResponse, error) {
	req := &schemas.ContinueRequest{Note: note}
	var out schemas.ContinueResponse
	if err := c.do(ctx, http.MethodPost, "/agent/continue/"+url.PathEscape(sessionID), req, &out); err != nil {
		return nil, sessionErr(err, sessionID)
	}
	return &out, nil
}

// DeleteSession removes a session from the backend via
// DELETE /sessions/{id}. An active session is stopped before removal.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) (*schemas.DeleteResponse, error) {
	var out schemas.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, sessionErr(err, sessionID)
	}
	return &out, nil
}

// Sessions lists all known sessions via GET /sessions.
func (c *Client) Sessions(ctx context.Context) (*schemas.SessionList, error) {
	var out schemas.SessionList
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// sessionErr maps 404s on session scoped endpoints onto ErrSessionNotFound so
// callers can branch with errors.Is instead of parsing status codes.
func sessionErr(err error, sessionID string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return err
}

// do performs one request/response cycle. body (if non-nil) is JSON encoded;
// a 2xx response is decoded into out, anything else becomes an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait aborted: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   method + " " + path,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if err := fastjson.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
