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
	"github.com/quillpress/apiserver/config"
	"github.com/quillpress/apiserver/internal/auth"
	"github.com/quillpress/apiserver/internal/db"
	"github.com/quillpress/apiserver/internal/handlers"
	"github.com/quillpress/apiserver/internal/mq"
	"github.com/quillpress/apiserver/internal/ratelimit"
	"github.com/quillpress/apiserver/internal/services"
	"github.com/quillpress/apiserver/internal/storage"
	"github.com/quillpress/apiserver/internal/store"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	redis      *redis.Client
	log        *slog.Logger
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := &Server{db: dbConn, log: log}

	objects, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		srv.closeResources()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	var events services.EventPublisher
	srv.mq, err = mq.NewFromConfig(ctx, cfg)
	if err != nil {
		srv.closeResources()
		return nil, err
	}
	if srv.mq != nil {
		events = mq.NewEventPublisher(srv.mq, cfg.MQ.Topic)
	}

	var limit func(http.Handler) http.Handler
	if cfg.RateLimit.RedisAddr != "" {
		srv.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
		})
		if err := srv.redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, rate limiting will fail open", slog.Any("error", err))
		}
		limit = ratelimit.New(srv.redis, cfg.RateLimit.Requests, cfg.RateLimit.Window, log).Middleware
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	userService := services.NewUserService(userRepo, tokens)
	postService := services.NewPostService(postRepo, events, log)
	uploadService := services.NewUploadService(objects, cfg.Upload.URLPrefix, cfg.Upload.MaxBytes, events, log)

	authMiddleware := handlers.RequireAuth(tokens)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			MaxAge:         300,
		}),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, userService, authMiddleware, limit, log)
		handlers.UploadRouter(r, uploadService, authMiddleware, log)
		r.Route("/posts", func(r chi.Router) {
			handlers.PostRouter(r, postService, authMiddleware, log)
		})
	})
	router.Route(cfg.Upload.URLPrefix, func(r chi.Router) {
		handlers.ContentRouter(r, uploadService, log)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is cancelled, then drains in-flight requests before
// releasing resources.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		s.closeResources()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.log.Warn("close mq", slog.Any("error", err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
