// Package api provides the HTTP REST API of the taurimind server.
//
// Endpoints:
//
//	GET    /health                                →  liveness probe
//	GET    /ready                                 →  readiness probe
//	GET    /api/models                            →  list supported models
//	GET    /api/conversations                     →  list the caller's conversations
//	POST   /api/conversations                     →  create a conversation
//	DELETE /api/conversations/{id}                →  delete a conversation
//	GET    /api/conversations/{id}/messages       →  conditional history fetch (ETag)
//	POST   /api/conversations/{id}/prompt         →  start a generation (202)
//	PUT    /api/conversations/{id}/model          →  switch the conversation's model
//	GET    /api/events                            →  SSE push channel (per user)
//
// Callers identify themselves with the X-User-ID header; every /api route
// is scoped to that user.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (identity, logging, recovery)
//   - health.go: health check endpoints (/health, /ready)
//   - models.go: model catalog endpoint
//   - conversations.go: conversation endpoints
//   - events.go: SSE event stream
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/taurimind/server/internal/conversation"
	"github.com/taurimind/server/internal/log"
	"github.com/taurimind/server/internal/model"
	"github.com/taurimind/server/internal/notify"
	"github.com/taurimind/server/internal/user"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Models        *model.Registry
	Users         *user.Registry
	Conversations *conversation.Registry
	Bus           *notify.Bus
	Ready         ReadyChecker
	Logger        log.Logger
}

// Server is the HTTP server for the taurimind REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	// Handlers
	health        *HealthHandler
	models        *ModelHandler
	conversations *ConversationHandler
	events        *EventHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:           mux,
		logger:        deps.Logger,
		health:        NewHealthHandler(deps.Ready, deps.Logger),
		models:        NewModelHandler(deps.Models),
		conversations: NewConversationHandler(deps.Users, deps.Conversations, deps.Models, deps.Logger),
		events:        NewEventHandler(deps.Bus, deps.Logger),
	}

	s.health.RegisterRoutes(mux)
	s.models.RegisterRoutes(mux)
	s.conversations.RegisterRoutes(mux)
	s.events.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → identity → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		identityMiddleware,
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
//
// No WriteTimeout is set: the SSE event stream holds its response open for
// the lifetime of the client connection.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
