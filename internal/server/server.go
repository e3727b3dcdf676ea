// Package server exposes the HTTP surface: one chat endpoint plus
// liveness and metrics routes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pranav/chatterbox/internal/observability"
	"github.com/rs/zerolog"
)

// Generator is the orchestrator surface the server needs.
type Generator interface {
	Generate(ctx context.Context, threadID, userMessage string, toolsEnabled bool) (string, error)
}

// Config holds server configuration.
type Config struct {
	Port      int
	Generator Generator
	Logger    zerolog.Logger
}

// Server is the HTTP front end.
type Server struct {
	echo      *echo.Echo
	port      int
	generator Generator
	logger    zerolog.Logger
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger(cfg.Logger))

	s := &Server{
		echo:      e,
		port:      cfg.Port,
		generator: cfg.Generator,
		logger:    cfg.Logger,
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	s.echo.POST("/chat", s.handleChat)
	s.echo.GET("/", s.handleLanding)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(observability.MetricsHandler()))
}

// Start begins serving and blocks until the listener fails or closes.
func (s *Server) Start() error {
	s.logger.Info().Int("port", s.port).Msg("HTTP server starting")

	if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("HTTP server shutting down")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
			return err
		}
	}
}
