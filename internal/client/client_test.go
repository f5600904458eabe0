// File: internal/client/client_test.go
package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miniatlas/atlasctl/api/schemas"
	"github.com/miniatlas/atlasctl/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(config.APIConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return c, srv
}

func TestNew(t *testing.T) {
	t.Run("rejects empty base URL", func(t *testing.T) {
		_, err := New(config.APIConfig{}, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("strips trailing slash", func(t *testing.T) {
		c, err := New(config.APIConfig{BaseURL: "http://localhost:8000/"}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", c.BaseURL())
	})

	t.Run("nil logger is tolerated", func(t *testing.T) {
		c, err := New(config.APIConfig{BaseURL: "http://localhost:8000"}, nil)
		require.NoError(t, err)
		require.NotNil(t, c)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the run request and returns the session id", func(t *testing.T) {
		var got schemas.RunRequest
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/run", r.URL.Path)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(schemas.RunResponse{SessionID: "sess_1", Status: schemas.StatusRunning})
		}))

		resp, err := c.Run(ctx, &schemas.RunRequest{
			URL:         "https://example.com",
			Goals:       []string{"Navigate to the page"},
			SessionMode: schemas.ModeEphemeral,
			MaxSteps:    20,
		})
		require.NoError(t, err)
		assert.Equal(t, "sess_1", resp.SessionID)
		assert.Equal(t, schemas.StatusRunning, resp.Status)
		assert.Equal(t, "https://example.com", got.URL)
		assert.Equal(t, []string{"Navigate to the page"}, got.Goals)
		assert.Equal(t, 20, got.MaxSteps)
	})

	t.Run("validates input before hitting the wire", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		}))

		_, err := c.Run(ctx, &schemas.RunRequest{URL: "", Goals: []string{"x"}})
		assert.Error(t, err)

		_, err = c.Run(ctx, &schemas.RunRequest{URL: "https://example.com"})
		assert.Error(t, err)

		_, err = c.Run(ctx, nil)
		assert.Error(t, err)
	})
}

func TestFullSession(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the full record", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/session/sess_1/full", r.URL.Path)
			json.NewEncoder(w).Encode(schemas.Session{
				SessionID: "sess_1",
				Status:    schemas.StatusRunning,
				Steps: []schemas.Step{
					{StepNumber: 1, Result: "navigated"},
				},
			})
		}))

		sess, err := c.FullSession(ctx, "sess_1")
		require.NoError(t, err)
		assert.Equal(t, "sess_1", sess.SessionID)
		assert.Equal(t, 1, sess.StepsCount())
	})

	t.Run("maps 404 to ErrSessionNotFound", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"Session not found"}`, http.StatusNotFound)
		}))

		_, err := c.FullSession(ctx, "sess_missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("surfaces other non-2xx as APIError", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
		}))

		_, err := c.FullSession(ctx, "sess_1")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, "boom")
		assert.Contains(t, apiErr.Error(), "500")
	})
}

func TestStopAndContinue(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stop/sess_1":
			require.Equal(t, http.MethodPost, r.Method)
			json.NewEncoder(w).Encode(schemas.StopResponse{Stopped: true, SessionID: "sess_1"})
		case "/agent/continue/sess_1":
			var req schemas.ContinueRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			json.NewEncoder(w).Encode(schemas.ContinueResponse{Continued: true, SessionID: "sess_1", Note: req.Note})
		default:
			http.NotFound(w, r)
		}
	}))

	stop, err := c.Stop(ctx, "sess_1")
	require.NoError(t, err)
	assert.True(t, stop.Stopped)

	cont, err := c.Continue(ctx, "sess_1", "CAPTCHA manually solved")
	require.NoError(t, err)
	assert.True(t, cont.Continued)
	assert.Equal(t, "CAPTCHA manually solved", cont.Note)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/sessions/sess_1":
			json.NewEncoder(w).Encode(schemas.DeleteResponse{Deleted: true, SessionID: "sess_1"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Session not found"})
		}
	}))

	t.Run("deletes a known session", func(t *testing.T) {
		resp, err := c.DeleteSession(ctx, "sess_1")
		require.NoError(t, err)
		assert.True(t, resp.Deleted)
		assert.Equal(t, "sess_1", resp.SessionID)
	})

	t.Run("maps 404 to ErrSessionNotFound", func(t *testing.T) {
		_, err := c.DeleteSession(ctx, "sess_gone")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestSessionsAndHealth(t *testing.T) {
	ctx := context.Background()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sessions":
			json.NewEncoder(w).Encode(schemas.SessionList{Sessions: []schemas.SessionSummary{
				{SessionID: "sess_1", Status: schemas.StatusCompleted, Steps: 3},
				{SessionID: "sess_2", Status: schemas.StatusRunning, Steps: 1},
			}})
		case "/health":
			json.NewEncoder(w).Encode(schemas.HealthResponse{Status: "healthy"})
		default:
			http.NotFound(w, r)
		}
	}))

	list, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, schemas.StatusCompleted, list.Sessions[0].Status)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestIsConnectivityError(t *testing.T) {
	t.Run("unreachable backend is a connectivity error", func(t *testing.T) {
		// Port 1 on localhost refuses connections.
		c, err := New(config.APIConfig{
			BaseURL:        "http://127.0.0.1:1",
			RequestTimeout: time.Second,
		}, zap.NewNop())
		require.NoError(t, err)

		_, err = c.Health(context.Background())
		require.Error(t, err)
		assert.True(t, IsConnectivityError(err))
	})

	t.Run("non-2xx is not a connectivity error", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "degraded", http.StatusServiceUnavailable)
		}))
		_, err := c.Health(context.Background())
		require.Error(t, err)
		assert.False(t, IsConnectivityError(err))
	})

	t.Run("nil and unrelated errors", func(t *testing.T) {
		assert.False(t, IsConnectivityError(nil))
		assert.False(t, IsConnectivityError(errors.New("plain")))
	})
}

func TestRateLimiterIsApplied(t *testing.T) {
	hits := 0
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(schemas.HealthResponse{Status: "healthy"})
	}))
	_ = srv

	// Rebuild with a limiter of 20 rps; three calls must take at least ~100ms.
	limited, err := New(config.APIConfig{
		BaseURL:        c.BaseURL(),
		RequestTimeout: 5 * time.Second,
		RateLimit:      20,
	}, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := limited.Health(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, hits)
}
