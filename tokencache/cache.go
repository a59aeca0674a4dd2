// Package tokencache holds one bearer token for an external API and
// refreshes it lazily shortly before it expires.
package tokencache

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RefreshWindow is how close to expiry a token is treated as stale.
const RefreshWindow = 60 * time.Second

// FetchFunc obtains a fresh token and the instant it stops being valid.
type FetchFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// Cache is a mutex-guarded single-slot token cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu        sync.Mutex
	fetch     FetchFunc
	now       func() time.Time
	token     string
	expiresAt time.Time
}

func New(fetch FetchFunc) *Cache {
	return &Cache{fetch: fetch, now: time.Now}
}

// Token returns the cached token, fetching a new one when none is held or
// the held one expires within RefreshWindow. Concurrent callers share one
// fetch.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(RefreshWindow).Before(c.expiresAt) {
		return c.token, nil
	}
	token, exp, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("token provider returned an empty token")
	}
	c.token, c.expiresAt = token, exp
	return token, nil
}

// Invalidate drops the held token, e.g. after the API answered 401.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token, c.expiresAt = "", time.Time{}
	c.mu.Unlock()
}
