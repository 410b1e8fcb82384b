package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/config"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestHTTPMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.Config{Log: config.LogConfig{Level: "info", Format: "json"}})

	var fromCtx *slog.Logger
	handler := middleware.RequestID(HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, fromCtx)
	require.NotSame(t, logger, fromCtx)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "http_request", line["msg"])
	require.Equal(t, float64(http.StatusTeapot), line["status"])
	require.Equal(t, "/api/tasks", line["path"])
	require.Equal(t, serviceName, line["service"])
	require.NotEmpty(t, line["req_id"])
}
