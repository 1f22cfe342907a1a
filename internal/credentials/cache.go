// file: internal/credentials/cache.go
// version: 1.0.0
// guid: 519ef490-66f7-4478-896b-36d64473f295

package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/jdfalk/bookmeta/internal/database"
	"github.com/jdfalk/bookmeta/internal/logger"
	"github.com/jdfalk/bookmeta/internal/metrics"
	"github.com/jdfalk/bookmeta/internal/models"
)

// DefaultRefreshBuffer is how long before expiry a token stops being reused.
const DefaultRefreshBuffer = 60 * time.Second

// SlotStore is the subset of database.Store the cache needs.
type SlotStore interface {
	GetCredential(ctx context.Context, slot string) (*models.Credential, error)
	UpsertCredential(ctx context.Context, cred *models.Credential) error
}

// Exchanger obtains a fresh bearer token and its issuer-reported lifetime.
type Exchanger interface {
	Exchange(ctx context.Context) (token string, lifetime time.Duration, err error)
}

// Cache hands out a bearer token backed by one persisted credential slot.
type Cache struct {
	store     SlotStore
	exchanger Exchanger
	slot      string
	buffer    time.Duration
	now       func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithBuffer overrides DefaultRefreshBuffer.
func WithBuffer(d time.Duration) Option {
	return func(c *Cache) { c.buffer = d }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a credential cache for slot.
func NewCache(store SlotStore, exchanger Exchanger, slot string, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		exchanger: exchanger,
		slot:      slot,
		buffer:    DefaultRefreshBuffer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token while it has more than the refresh buffer
// left, otherwise exchanges for a new one and persists it. Exchange failures
// are returned as upstream auth errors and never retried here.
func (c *Cache) Token(ctx context.Context) (string, error) {
	trail := logger.TrailFrom(ctx)
	now := c.now()

	cred, err := c.store.GetCredential(ctx, c.slot)
	switch {
	case err == nil && cred.AccessToken != "" && cred.ExpiresAt.After(now.Add(c.buffer)):
		metrics.IncCacheLookup("credential", "hit")
		return cred.AccessToken, nil
	case err != nil && !errors.Is(err, database.ErrNotFound):
		trail.Warn("credential cache read failed, refreshing", map[string]interface{}{
			"slot":  c.slot,
			"error": err.Error(),
		})
	}
	metrics.IncCacheLookup("credential", "miss")

	token, lifetime, err := c.exchanger.Exchange(ctx)
	if err != nil {
		return "", apperr.UpstreamAuth(err, "client credential exchange for %s failed", c.slot)
	}

	fresh := &models.Credential{
		Slot:        c.slot,
		AccessToken: token,
		Lifetime:    lifetime,
		ExpiresAt:   now.Add(lifetime),
	}
	if err := c.store.UpsertCredential(ctx, fresh); err != nil {
		trail.Warn("credential cache write failed", map[string]interface{}{
			"slot":  c.slot,
			"error": apperr.CacheWrite(err, "upsert credential").Error(),
		})
	}
	trail.Info("refreshed upstream credential", map[string]interface{}{
		"slot":       c.slot,
		"expires_in": lifetime.String(),
	})
	return token, nil
}
