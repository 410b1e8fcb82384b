package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/db"
	"github.com/taskflow/apiserver/internal/events"
	"github.com/taskflow/apiserver/internal/handlers"
	"github.com/taskflow/apiserver/internal/logging"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/internal/services"
	"github.com/taskflow/apiserver/internal/storage"
	"github.com/taskflow/apiserver/internal/store"
)

const (
	Name    = "taskflow-api"
	Version = "1.0.0"
)

// Server wraps the HTTP server, router and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	bus        *mq.MQ
	publisher  *events.AsyncPublisher
	logger     *slog.Logger
}

const eventQueueSize = 256

// New wires storage, services and routes from cfg. A missing JWT secret is
// a startup error.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is required: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	bus, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher events.Publisher = events.Nop{}
	var async *events.AsyncPublisher
	if bus != nil {
		async = events.NewAsyncPublisher(events.NewMQPublisher(bus, cfg.MQ.Channel), eventQueueSize)
		publisher = async
	}

	archiver, err := storage.Open(ctx, cfg.Archive)
	if err != nil {
		_ = dbConn.Close()
		if bus != nil {
			_ = async.Close(ctx)
			_ = bus.Close()
		}
		return nil, err
	}

	conn := store.NewConn(dbConn, cfg.Database.QueryTimeout)
	userRepo := store.NewUserRepository(conn)
	taskRepo := store.NewTaskRepository(conn)

	userOpts := []services.UserServiceOption{services.WithUserEvents(publisher)}
	if archiver != nil {
		userOpts = append(userOpts, services.WithArchiver(archiver))
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptRounds)
	userService := services.NewUserService(userRepo, taskRepo, hasher, tokens, userOpts...)
	taskService := services.NewTaskService(taskRepo, publisher)

	authMiddleware := handlers.RequireAuth(tokens)
	authLimit := handlers.RateLimit(cfg.RateLimit, handlers.RemoteAddrKeyExtractor)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.RateLimit.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		logging.HTTPMiddleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
	)
	router.NotFound(handlers.NotFound)
	router.MethodNotAllowed(handlers.MethodNotAllowed)

	router.Get("/", handlers.Info(Name, Version))
	router.Get("/healthz", handlers.Healthz(conn))
	router.Route("/api/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, authMiddleware, authLimit)
	})
	router.Route("/api/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, taskService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 3000
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	logger.Info("server configured",
		"port", port,
		"db_driver", cfg.Database.Driver,
		"mq_backend", cfg.MQ.Backend,
		"archive_backend", cfg.Archive.Backend,
		"bcrypt_cost", hasher.Cost(),
		"token_ttl", tokens.TTL().String(),
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		bus:        bus,
		publisher:  async,
		logger:     logger,
	}, nil
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and queued events, then releases the
// pool and the bus.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.publisher != nil {
		err = errors.Join(err, s.publisher.Close(ctx))
	}
	if s.bus != nil {
		err = errors.Join(err, s.bus.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
