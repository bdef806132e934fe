// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/havenworlds/haven-relay/internal/components/gitproxy"
	"github.com/havenworlds/haven-relay/internal/components/identity"
	"github.com/havenworlds/haven-relay/internal/components/invites"
	"github.com/havenworlds/haven-relay/internal/components/mailbox"
	"github.com/havenworlds/haven-relay/internal/components/notifications"
	"github.com/havenworlds/haven-relay/internal/platform/config"
	"github.com/havenworlds/haven-relay/internal/platform/logutil"
)

// Deps are the domain components the server routes to.
type Deps struct {
	Registrar *identity.Registrar
	Mailboxes *mailbox.Repository
	GitProxy  *gitproxy.Proxy
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger

	identityHandler      *identity.Handler
	invitesHandler       *invites.Handler
	notificationsHandler *notifications.Handler
	gitProxy             *gitproxy.Proxy
}

// New creates a new Server with the given configuration and dependencies.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) *Server {
	logger = logutil.NoopIfNil(logger)

	s := &Server{
		cfg:                  cfg,
		logger:               logger,
		identityHandler:      identity.NewHandler(deps.Registrar),
		invitesHandler:       invites.NewHandler(deps.Mailboxes),
		notificationsHandler: notifications.NewHandler(deps.Registrar, deps.Mailboxes),
		gitProxy:             deps.GitProxy,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No ReadTimeout/WriteTimeout: git pack streams through /git can
		// outlast any fixed limit.
	}

	return s
}

// Handler returns the root handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.cfg.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
