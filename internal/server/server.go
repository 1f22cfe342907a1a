// file: internal/server/server.go
// version: 2.0.0
// guid: 2c4d6e8f-0a1b-2c3d-4e5f-6a7b8c9d0e1f

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdfalk/bookmeta/internal/auth"
	"github.com/jdfalk/bookmeta/internal/config"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/metrics"
	"github.com/jdfalk/bookmeta/internal/models"
	"github.com/jdfalk/bookmeta/internal/resolver"
	"github.com/jdfalk/bookmeta/internal/server/middleware"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// shutdownGrace bounds how long in-flight requests may finish.
const shutdownGrace = 30 * time.Second

// BookResolver resolves and searches books.
type BookResolver interface {
	Resolve(ctx context.Context, req resolver.BookRequest) (*models.Record, error)
	Search(ctx context.Context, query string) ([]models.Record, error)
}

// AudiobookResolver resolves and searches audiobooks.
type AudiobookResolver interface {
	Resolve(ctx context.Context, req resolver.AudiobookRequest) (*resolver.AudiobookResult, error)
	Search(ctx context.Context, query string, limit int) ([]models.Record, error)
	MatchAudible(ctx context.Context, title, author string) (*resolver.AudibleMatch, error)
}

// DeadlineRecorder stores community deadline submissions.
type DeadlineRecorder interface {
	Submit(ctx context.Context, userID string, sub resolver.DeadlineSubmission) (*models.Deadline, error)
}

// Sizer reports how many documents an index holds.
type Sizer interface {
	Len() int
}

// Services are the collaborators the HTTP handlers call into.
type Services struct {
	Books      BookResolver
	Audiobooks AudiobookResolver
	Deadlines  DeadlineRecorder
	Verifier   auth.Verifier
	Index      Sizer
}

// Options tune the inbound middleware chain.
type Options struct {
	MaxBodyBytes    int64
	RateLimitPerMin int
	RateLimitBurst  int
	DatabaseType    string
	Logger          *logger.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	opts       Options
}

// NewServer creates a new server instance
func NewServer(services Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Get().WithComponent("http")
	}

	router := gin.New()

	// Set up middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.RequestID())
	router.Use(requestLogging(opts.Logger))

	// Register metrics (idempotent)
	metrics.Register()

	server := &Server{
		router:   router,
		services: services,
		opts:     opts,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, cfg config.ServerConfig) error {
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("starting server", map[string]interface{}{"addr": s.httpServer.Addr})
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.opts.Logger.Info("shutting down server")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.opts.Logger.Info("server exited")
	return nil
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint (standard path)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/api/v1/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	api.Use(middleware.NewIPRateLimiter(s.opts.RateLimitPerMin, s.opts.RateLimitBurst).Middleware())
	api.Use(middleware.MaxRequestBodySize(s.opts.MaxBodyBytes))
	api.Use(middleware.RequireBearer(s.services.Verifier))
	{
		api.POST("/books/resolve", s.resolveBook)
		api.POST("/books/search", s.searchBooks)

		api.POST("/audiobooks/resolve", s.resolveAudiobook)
		api.POST("/audiobooks/search", s.searchAudiobooks)
		api.POST("/audiobooks/audible", s.matchAudible)

		api.POST("/deadlines", s.submitDeadline)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:       "ok",
		Timestamp:    time.Now().Unix(),
		Version:      Version,
		DatabaseType: s.opts.DatabaseType,
	}
	if s.services.Index != nil {
		n := s.services.Index.Len()
		resp.IndexedBooks = &n
	}
	c.JSON(http.StatusOK, resp)
}
