package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cidco-records/apiserver/config"
	"github.com/cidco-records/apiserver/internal/db"
	"github.com/cidco-records/apiserver/internal/events"
	"github.com/cidco-records/apiserver/internal/handlers"
	"github.com/cidco-records/apiserver/internal/mail"
	"github.com/cidco-records/apiserver/internal/services"
	"github.com/cidco-records/apiserver/internal/storage"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and its long-lived dependencies. Everything
// is constructed once at startup and passed down by reference; request
// handlers hold no process-wide state of their own.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  events.Publisher
}

// New constructs a Server with the full dependency graph wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStore, err := newObjectStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("storage bucket check failed: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var mailer services.Mailer
	if strings.TrimSpace(cfg.SMTP.Username) != "" {
		smtpMailer, err := mail.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			_ = dbConn.Close()
			_ = publisher.Close()
			return nil, err
		}
		mailer = smtpMailer
	} else {
		slog.Warn("smtp not configured, reset links will be logged only")
	}

	userRepo := store.NewUserRepository(dbConn)
	registryRepo := store.NewRegistryRepository(dbConn)

	userService := services.NewUserService(userRepo, mailer, publisher, cfg.FrontendURL)
	registryService := services.NewRegistryService(registryRepo, publisher)
	evidenceService := services.NewEvidenceService(objectStore)

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		_ = publisher.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.UserRouter(router, userService, jwtSecret)
	handlers.RegistryRouter(router, registryService)
	handlers.RecordRouter(router, registryService, evidenceService, authMiddleware)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		backend, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "gcs":
		backend, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newPublisher(ctx context.Context, cfg config.EventsConfig) (events.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return events.NoopPublisher{}, nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(cfg.RabbitMQ)
	case "pubsub":
		return events.NewPubSubPublisher(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
