package middleware

import (
	"context"
	"net/http"

	"github.com/quietcut/quietcut/pkg/models"
)

type contextKey string

const principalKey contextKey = "principal"

func SetPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal returns the authenticated principal, or nil for anonymous
// requests.
func GetPrincipal(r *http.Request) *models.Principal {
	p, _ := r.Context().Value(principalKey).(*models.Principal)
	return p
}
