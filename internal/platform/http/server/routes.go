package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/havenworlds/haven-relay/internal/components/api"
	httpmw "github.com/havenworlds/haven-relay/internal/platform/http/middleware"
)

// maxAPIBodyBytes bounds JSON request bodies. The /git subtree is exempt:
// pack uploads are arbitrarily large and never JSON-parsed.
const maxAPIBodyBytes = 1 << 20

// setupRoutes creates the chi router with all endpoints mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Always-on transport middleware (order is invariant):
	// RequestID -> request-scoped logger -> access log -> recoverer
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger))
	r.Use(httpmw.AccessLogMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	// Session clients live anywhere; the relay is origin-agnostic.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Route("/api", func(apirt chi.Router) {
		apirt.Use(chimw.RequestSize(maxAPIBodyBytes))
		apirt.Get("/healthz", api.HealthHandler)
		apirt.Post("/register", s.identityHandler.HandleRegister)
		apirt.Post("/invite", s.invitesHandler.HandleInvite)
		apirt.Post("/respond", s.invitesHandler.HandleRespond)
		apirt.Post("/notifications", s.notificationsHandler.HandlePoll)
	})

	r.Handle("/git/*", s.gitProxy)

	// Everything else is rejected outright.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.WriteForbidden(w, api.ReasonForbidden, "forbidden")
	})

	return r
}
