package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()
	return NewHealthHandler(BuildInfo{Version: "1.2.3", BuildTime: "now", GitCommit: "abc"}, zaptest.NewLogger(t))
}

func serve(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := newHealthHandler(t)
	h.RegisterCheck(NewCheck("redis", func(context.Context) error { return errors.New("down") }))

	w := serve(h.HandleHealth, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Empty(t, status.Checks)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantHealth string
	}{
		{"no checks", nil, http.StatusOK, "healthy"},
		{
			"all pass",
			[]HealthCheck{
				NewCheck("redis", func(context.Context) error { return nil }),
				NewCheck("engine", func(context.Context) error { return nil }),
			},
			http.StatusOK, "healthy",
		},
		{
			"one fails",
			[]HealthCheck{
				NewCheck("redis", func(context.Context) error { return nil }),
				NewCheck("engine", func(context.Context) error { return errors.New("breaker open") }),
			},
			http.StatusServiceUnavailable, "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHealthHandler(t)
			for _, c := range tt.checks {
				h.RegisterCheck(c)
			}

			w := serve(h.HandleReady, "/ready")
			assert.Equal(t, tt.wantStatus, w.Code)

			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			assert.Equal(t, tt.wantHealth, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
			if tt.wantHealth == "unhealthy" {
				assert.Equal(t, "fail", status.Checks["engine"].Status)
				assert.Equal(t, "breaker open", status.Checks["engine"].Message)
				assert.Equal(t, "pass", status.Checks["redis"].Status)
			}
		})
	}
}

func TestHealthHandler_ReadyPassesContext(t *testing.T) {
	h := newHealthHandler(t)
	h.RegisterCheck(NewCheck("deadline", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}))
	assert.Equal(t, http.StatusOK, serve(h.HandleReady, "/ready").Code)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	h := newHealthHandler(t)
	w := serve(h.HandleVersion, "/version")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool      `json:"success"`
		Data    BuildInfo `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, BuildInfo{Version: "1.2.3", BuildTime: "now", GitCommit: "abc"}, resp.Data)
}

func TestNewCheck(t *testing.T) {
	c := NewCheck("redis", func(context.Context) error { return nil })
	assert.Equal(t, "redis", c.Name())
	assert.NoError(t, c.Check(context.Background()))
}
