// file: internal/credentials/cache_test.go
// version: 1.0.0
// guid: 6a224512-02a0-484d-895c-bc29064ca57f

package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/models"
)

type countingExchanger struct {
	calls    atomic.Int32
	token    string
	lifetime time.Duration
	err      error
}

func (e *countingExchanger) Exchange(ctx context.Context) (string, time.Duration, error) {
	e.calls.Add(1)
	return e.token, e.lifetime, e.err
}

type failingWrites struct {
	*database.MemoryStore
}

func (f failingWrites) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	return errors.New("store offline")
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestToken_FreshCredentialMakesNoCall(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := database.NewMemoryStore()
	require.NoError(t, store.UpsertCredential(context.Background(), &models.Credential{
		Slot: "spotify", AccessToken: "cached", ExpiresAt: now.Add(120 * time.Second),
	}))
	ex := &countingExchanger{token: "new", lifetime: time.Hour}

	tok, err := NewCache(store, ex, "spotify", WithClock(fixedClock(now))).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", tok)
	assert.Equal(t, int32(0), ex.calls.Load())
}

func TestToken_NearExpiryRefreshesOnce(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := database.NewMemoryStore()
	require.NoError(t, store.UpsertCredential(context.Background(), &models.Credential{
		Slot: "spotify", AccessToken: "stale", ExpiresAt: now.Add(30 * time.Second),
	}))
	ex := &countingExchanger{token: "fresh", lifetime: time.Hour}
	cache := NewCache(store, ex, "spotify", WithClock(fixedClock(now)))

	tok, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, int32(1), ex.calls.Load())

	saved, err := store.GetCredential(context.Background(), "spotify")
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.True(t, now.Add(time.Hour).Equal(saved.ExpiresAt))

	tok, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestToken_EmptySlotExchanges(t *testing.T) {
	ex := &countingExchanger{token: "first", lifetime: time.Hour}
	tok, err := NewCache(database.NewMemoryStore(), ex, "spotify").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestToken_ExchangeFailureIsUpstreamAuth(t *testing.T) {
	ex := &countingExchanger{err: errors.New("invalid_client")}
	_, err := NewCache(database.NewMemoryStore(), ex, "spotify").Token(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstreamAuth))
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestToken_WriteFailureStillReturnsToken(t *testing.T) {
	ex := &countingExchanger{token: "fresh", lifetime: time.Hour}
	store := failingWrites{database.NewMemoryStore()}
	tok, err := NewCache(store, ex, "spotify").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}

func TestClientCredentials_Exchange(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"BQD1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tok, lifetime, err := NewClientCredentials("id", "secret", srv.URL, time.Second).Exchange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BQD1", tok)
	assert.InDelta(t, float64(time.Hour), float64(lifetime), float64(2*time.Second))
	assert.Contains(t, gotAuth, "Basic ")
}

func TestClientCredentials_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	_, _, err := NewClientCredentials("id", "bad", srv.URL, time.Second).Exchange(context.Background())
	assert.Error(t, err)
}
