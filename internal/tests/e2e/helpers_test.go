//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/db"
	"github.com/taskflow/apiserver/internal/server"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "taskflow"
	postgresPassword = "taskflow"
	postgresDB       = "taskflow"
)

var baseURL string

// TestMain starts postgres in a container, migrates it and serves the real
// router on an httptest server for the whole package.
func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, dbCfg, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}

	code, err := run(ctx, m, dbCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		code = 1
	}

	_ = container.Terminate(context.Background())
	os.Exit(code)
}

func run(ctx context.Context, m *testing.M, dbCfg config.DatabaseConfig) (int, error) {
	if err := db.MigrateUp(ctx, dbCfg); err != nil {
		return 1, fmt.Errorf("failed to run migrations: %w", err)
	}

	cfg := config.Config{
		Env:             "test",
		ServerPort:      0,
		ShutdownTimeout: 5 * time.Second,
		CORSOrigins:     []string{"*"},
		Database:        dbCfg,
		Auth: config.AuthConfig{
			JWTSecret:    "e2e-secret",
			TokenTTL:     time.Hour,
			BcryptRounds: 4,
		},
		RateLimit: config.RateLimitConfig{Requests: 1000, Window: time.Minute},
		MQ:        config.MQConfig{Backend: "none"},
		Archive:   config.ArchiveConfig{Backend: "none"},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return 1, fmt.Errorf("failed to build server: %w", err)
	}
	httpServer := httptest.NewServer(srv.Router())
	baseURL = httpServer.URL

	code := m.Run()

	httpServer.Close()
	_ = srv.Shutdown(context.Background())
	return code, nil
}

func startPostgres(ctx context.Context) (testcontainers.Container, config.DatabaseConfig, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, config.DatabaseConfig{}, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return container, config.DatabaseConfig{}, err
	}
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return container, config.DatabaseConfig{}, err
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return container, config.DatabaseConfig{}, err
	}

	return container, config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         host,
		Port:         port,
		User:         postgresUser,
		Password:     postgresPassword,
		DBName:       postgresDB,
		MaxOpenConns: 10,
		QueryTimeout: 5 * time.Second,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Total   *int            `json:"total"`
}

type authBody struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

type taskBody struct {
	ID          int     `json:"id"`
	UserID      int     `json:"userId"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

func call(t *testing.T, method, path, token string, body any) (int, []byte, envelope) {
	t.Helper()

	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, baseURL+path, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, raw, env
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@example.com", prefix, time.Now().UnixNano())
}

func register(t *testing.T, email string) authBody {
	t.Helper()
	status, raw, env := call(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "E2E", "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	var user authBody
	require.NoError(t, json.Unmarshal(env.Data, &user))
	return user
}

func createTask(t *testing.T, token string, body map[string]any) taskBody {
	t.Helper()
	status, raw, env := call(t, http.MethodPost, "/api/tasks", token, body)
	require.Equal(t, http.StatusCreated, status, string(raw))

	var task taskBody
	require.NoError(t, json.Unmarshal(env.Data, &task))
	return task
}
