package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/taskflow/apiserver/internal/logging"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Info describes the API at the root path.
func Info(name, version string) http.HandlerFunc {
	doc := map[string]any{
		"name":    name,
		"version": version,
		"endpoints": map[string]string{
			"register":      "POST /api/users/register",
			"login":         "POST /api/users/login",
			"deleteAccount": "DELETE /api/users/account",
			"createTask":    "POST /api/tasks",
			"listTasks":     "GET /api/tasks",
			"stats":         "GET /api/tasks/stats",
			"getTask":       "GET /api/tasks/{id}",
			"updateTask":    "PUT /api/tasks/{id}",
			"deleteTask":    "DELETE /api/tasks/{id}",
			"completeTask":  "PATCH /api/tasks/{id}/complete",
		},
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, "", doc)
	}
}

// Healthz pings the store and answers 503 when it is unreachable.
func Healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, msgUnavailable)
			return
		}
		writeSuccess(w, http.StatusOK, "ok", nil)
	}
}
