package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quietcut/quietcut/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeAccountStore struct {
	accounts map[string][]*models.Account

	mu      sync.Mutex
	touched []uuid.UUID
}

func (f *fakeAccountStore) GetAccountsByKeyPrefix(_ context.Context, prefix string) ([]*models.Account, error) {
	return f.accounts[prefix], nil
}

func (f *fakeAccountStore) TouchAccountLastSeen(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeAccountStore) Ping(_ context.Context) error                        { return nil }
func (f *fakeAccountStore) CreateJob(_ context.Context, _ *models.Job) error    { return nil }
func (f *fakeAccountStore) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, nil
}
func (f *fakeAccountStore) ListJobsForOwner(_ context.Context, _ uuid.UUID) ([]*models.Job, error) {
	return nil, nil
}
func (f *fakeAccountStore) ClaimJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, nil
}
func (f *fakeAccountStore) CompleteJob(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
	return nil, nil
}
func (f *fakeAccountStore) FailJob(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
	return nil, nil
}
func (f *fakeAccountStore) FailStuckJobs(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}
func (f *fakeAccountStore) ListStalePendingJobs(_ context.Context, _ time.Duration) ([]uuid.UUID, error) {
	return nil, nil
}

// storeWithKey hashes rawKey the way account provisioning does and returns a
// store holding one matching account.
func storeWithKey(t *testing.T, rawKey string, premium bool) (*fakeAccountStore, uuid.UUID) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)

	id := uuid.New()
	prefix := rawKey[:keyPrefixLen]
	st := &fakeAccountStore{accounts: map[string][]*models.Account{
		prefix: {{
			ID:        id,
			Email:     "user@example.com",
			KeyHash:   string(hash),
			KeyPrefix: prefix,
			Premium:   premium,
		}},
	}}
	return st, id
}

func principalEcho() (http.Handler, *[]*models.Principal) {
	var seen []*models.Principal
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, GetPrincipal(r))
		w.WriteHeader(http.StatusOK)
	})
	return h, &seen
}

func TestAuthRequire_ValidKey(t *testing.T) {
	const rawKey = "qc_live_2f8a1c9d4e"
	st, accountID := storeWithKey(t, rawKey, true)
	next, seen := principalEcho()
	h := NewAuth(st).Require(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *seen, 1)
	p := (*seen)[0]
	require.NotNil(t, p)
	assert.Equal(t, accountID, p.AccountID)
	assert.True(t, p.Premium)
	assert.Equal(t, rawKey[:keyPrefixLen], p.KeyPrefix)
}

func TestAuthRequire_MissingHeader(t *testing.T) {
	st, _ := storeWithKey(t, "qc_live_2f8a1c9d4e", false)
	next, seen := principalEcho()
	h := NewAuth(st).Require(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, *seen)
}

func TestAuthRequire_WrongKeySamePrefix(t *testing.T) {
	st, _ := storeWithKey(t, "qc_live_2f8a1c9d4e", false)
	next, _ := principalEcho()
	h := NewAuth(st).Require(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer qc_live_000000000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequire_KeyShorterThanPrefix(t *testing.T) {
	st, _ := storeWithKey(t, "qc_live_2f8a1c9d4e", false)
	next, _ := principalEcho()
	h := NewAuth(st).Require(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer qc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthOptional_AnonymousPassesThrough(t *testing.T) {
	st, _ := storeWithKey(t, "qc_live_2f8a1c9d4e", false)
	next, seen := principalEcho()
	h := NewAuth(st).Optional(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *seen, 1)
	assert.Nil(t, (*seen)[0])
}

func TestAuthOptional_InvalidKeyStillRejected(t *testing.T) {
	st, _ := storeWithKey(t, "qc_live_2f8a1c9d4e", false)
	next, seen := principalEcho()
	h := NewAuth(st).Optional(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer qc_live_wrongwrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, *seen)
}

func TestAuthOptional_ValidKeyAttachesPrincipal(t *testing.T) {
	const rawKey = "qc_live_2f8a1c9d4e"
	st, accountID := storeWithKey(t, rawKey, false)
	next, seen := principalEcho()
	h := NewAuth(st).Optional(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, *seen, 1)
	require.NotNil(t, (*seen)[0])
	assert.Equal(t, accountID, (*seen)[0].AccountID)
	assert.False(t, (*seen)[0].Premium)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer qc_live_abc", "qc_live_abc"},
		{"lowercase scheme", "bearer qc_live_abc", "qc_live_abc"},
		{"no header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(req))
		})
	}
}
