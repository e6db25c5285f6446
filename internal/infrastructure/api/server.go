package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/k-shtanenko/weather-relay/internal/config"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const Version = "1.0.0"

// APIServer exposes health, stats and manual refresh. It is also an
// event source: POST /api/v1/refresh feeds the subscribed handler.
type APIServer struct {
	server     *http.Server
	router     *gin.Engine
	handler    *APIHandler
	middleware *Middleware
	config     *config.Config
	logger     logger.Logger
}

func NewAPIServer(status StatusProvider, middleware *Middleware, cfg *config.Config, log logger.Logger) *APIServer {
	gin.SetMode(gin.ReleaseMode)
	if cfg.App.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	s := &APIServer{
		router:     gin.New(),
		handler:    NewAPIHandler(status, Version, log),
		middleware: middleware,
		config:     cfg,
		logger:     log.WithField("component", "api_server"),
	}
	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(s.middleware.Recovery())
	s.router.Use(s.middleware.Logging())

	s.router.GET("/health", s.handler.HealthCheck)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.middleware.RateLimit())
	{
		v1.GET("/stats", s.handler.GetStats)
		v1.POST("/refresh", s.handler.Refresh)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   http.StatusText(http.StatusNotFound),
			Message: fmt.Sprintf("Route %s not found", c.Request.URL.Path),
			Time:    time.Now(),
		})
	})
}

func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Subscribe registers the handler that receives refresh events until ctx is done.
func (s *APIServer) Subscribe(ctx context.Context, handler ports.EventHandler) error {
	s.handler.subscribe(ctx, handler)
	return nil
}

func (s *APIServer) Start() error {
	addr := fmt.Sprintf(":%d", s.config.API.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Infof("Starting API server on %s", listener.Addr())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("API server stopped unexpectedly: %v", err)
		}
	}()

	return nil
}

func (s *APIServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Shutting down API server...")

	shutdownCtx := ctx
	if s.config.API.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.API.ShutdownTimeout)
		defer cancel()
	}

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}
