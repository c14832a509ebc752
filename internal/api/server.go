// Package api exposes the user list over a small JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/illmade-knight/random-user/app"
	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
)

// Server wires the App's actions to HTTP routes.
type Server struct {
	app        *app.App
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	logger     zerolog.Logger
}

// NewServer builds the router. metrics may be nil, in which case /metrics is
// not registered.
func NewServer(a *app.App, metrics http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		app:    a,
		logger: logger.With().Str("component", "api").Logger(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/state", s.getState)
	engine.GET("/users", s.listUsers)
	engine.GET("/users/:id", s.getUser)
	engine.POST("/refresh", s.refresh)
	engine.POST("/fetch-more", s.fetchMore)
	engine.POST("/mode", s.setMode)
	engine.POST("/tab", s.setTab)
	engine.POST("/layout", s.setLayout)
	engine.POST("/selection/:id", s.toggleSelection)
	engine.DELETE("/selection", s.cancelSelection)
	engine.POST("/delete", s.confirmDelete)
	if metrics != nil {
		engine.GET("/metrics", gin.WrapH(metrics))
	}

	s.engine = engine
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}()
	s.logger.Info().Str("addr", listener.Addr().String()).Msg("HTTP API listening")
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

// respondError maps domain errors to HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, users.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrInvalidMode), errors.Is(err, app.ErrInvalidTab), errors.Is(err, app.ErrInvalidLayout):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrFetchFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// respondState writes the current snapshot.
func (s *Server) respondState(c *gin.Context) {
	st, err := s.app.State(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
