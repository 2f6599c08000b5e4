package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/quietcut/quietcut/internal/api/middleware"
	"github.com/quietcut/quietcut/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	CreateJob     http.HandlerFunc
	GetJob        http.HandlerFunc
	ListJobs      http.HandlerFunc
	DownloadJob   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
// Job creation and status accept anonymous callers (free tier, share-the-
// link polling); the list endpoint requires an account.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Optional)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJob))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
		r.Get("/api/v1/jobs/{jobID}/download", orNotImplemented(deps.DownloadJob))
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Require)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
