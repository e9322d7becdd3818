package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const hstsMaxAge = 31536000

// Routes constructs the diagnostic HTTP surface. It exposes the
// assembled provider records for inspection; the authorization
// request cycle itself is served elsewhere.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	if !a.Config.Server.DevMode {
		r.Use(SecurityHeadersMiddleware(hstsMaxAge))
	}

	r.Get("/healthz", a.handleHealth)
	r.Get("/providers", a.handleProviders)
	r.Get("/providers/{id}", a.handleProvider)
	r.Get("/providers/{id}/authorize-url", a.handleAuthorizeURL)

	return r
}
