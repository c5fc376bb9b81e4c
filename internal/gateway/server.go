package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(countRequests(g.metrics))

	// Public: probes and scraping.
	r.Get("/health", g.handleHealth())
	if g.promReg != nil {
		r.Method(http.MethodGet, "/metrics", g.promReg.Handler())
	}

	// Operator endpoints, behind auth when configured.
	r.Group(func(r chi.Router) {
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth, g.logger, g.limiter, g.metrics))
		}
		r.Get("/status", g.handleStatus())
		if g.tap != nil {
			r.Handle("/ws/updates", g.tap)
		}
	})

	return r
}
