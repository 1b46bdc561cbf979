package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statline/statline-backend/internal/platform/logger"
)

// Server wraps the gin engine in an http.Server so the app can shut it
// down gracefully instead of dropping in-flight requests.
type Server struct {
	log *logger.Logger
	srv *http.Server
}

func NewServer(addr string, engine *gin.Engine, baseLog *logger.Logger) *Server {
	return &Server{
		log: baseLog.With("component", "HTTPServer"),
		srv: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start blocks until the listener closes. A clean Shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
