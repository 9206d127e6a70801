// Package server provides the HTTP API for the concierge.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/knowledge"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pipeline"
	"go.uber.org/zap"
)

// ChatHandler runs one request through the pipeline.
type ChatHandler interface {
	Handle(ctx context.Context, req pipeline.Request) (*pipeline.Run, error)
}

// KnowledgeBase is the part of the knowledge base exposed over HTTP.
type KnowledgeBase interface {
	IndexDocument(ctx context.Context, input *models.DocumentInput) error
	DeleteDocument(ctx context.Context, id string) error
	Stats(ctx context.Context) (knowledge.Stats, error)
}

// Server is the HTTP server for the concierge API.
type Server struct {
	chat      ChatHandler
	knowledge KnowledgeBase
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. cfg is used for the listen
// address, the request timeout and the status summary.
func NewServer(chat ChatHandler, kb KnowledgeBase, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:      chat,
		knowledge: kb,
		config:    cfg,
		logger:    logger,
	}
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	timeout := time.Duration(0)
	if s.config != nil {
		timeout = s.config.Server.RequestTimeout
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/chat", s.handleChat)
		r.Post("/knowledge", s.handleIndexDocument)
		r.Delete("/knowledge/{id}", s.handleDeleteDocument)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
