package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quietcut/quietcut/internal/api/response"
	"github.com/quietcut/quietcut/internal/store"
	"github.com/quietcut/quietcut/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefixLen = 8

// Auth resolves Bearer API keys to account principals.
type Auth struct {
	store store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Require rejects requests without a valid API key.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		p, ok := a.resolve(r, rawKey)
		if !ok {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), p)))
	})
}

// Optional resolves a key when present but lets anonymous requests through.
// Free-tier submissions and status polls need no account; a key that is
// present but invalid is still rejected rather than downgraded.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		p, ok := a.resolve(r, rawKey)
		if !ok {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetPrincipal(r.Context(), p)))
	})
}

// resolve looks up candidate accounts by key prefix and matches by bcrypt
// comparison.
func (a *Auth) resolve(r *http.Request, rawKey string) (*models.Principal, bool) {
	if len(rawKey) < keyPrefixLen {
		return nil, false
	}
	prefix := rawKey[:keyPrefixLen]

	accounts, err := a.store.GetAccountsByKeyPrefix(r.Context(), prefix)
	if err != nil {
		return nil, false
	}

	for _, acct := range accounts {
		if bcrypt.CompareHashAndPassword([]byte(acct.KeyHash), []byte(rawKey)) == nil {
			// Update last_seen_at async
			go a.store.TouchAccountLastSeen(context.Background(), acct.ID)

			return &models.Principal{
				AccountID: acct.ID,
				KeyPrefix: prefix,
				Premium:   acct.Premium,
			}, true
		}
	}
	return nil, false
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
