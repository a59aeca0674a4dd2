package tokencache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(clock *fakeClock, ttl time.Duration, calls *int) *Cache {
	c := New(func(ctx context.Context) (string, time.Time, error) {
		*calls++
		return fmt.Sprintf("tok-%d", *calls), clock.t.Add(ttl), nil
	})
	c.now = clock.now
	return c
}

func TestToken_ReusedUntilRefreshWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0
	c := newTestCache(clock, 10*time.Minute, &calls)

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	clock.t = clock.t.Add(8 * time.Minute)
	tok, _ = c.Token(context.Background())
	assert.Equal(t, "tok-1", tok)

	// 50s left: inside the refresh window.
	clock.t = clock.t.Add(time.Minute + 10*time.Second)
	tok, _ = c.Token(context.Background())
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, calls)
}

func TestToken_InvalidateForcesFetch(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	calls := 0
	c := newTestCache(clock, time.Hour, &calls)

	_, _ = c.Token(context.Background())
	c.Invalidate()
	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestToken_FetchErrorIsNotCached(t *testing.T) {
	fail := true
	c := New(func(ctx context.Context) (string, time.Time, error) {
		if fail {
			return "", time.Time{}, errors.New("login refused")
		}
		return "ok", time.Now().Add(time.Hour), nil
	})

	_, err := c.Token(context.Background())
	require.EqualError(t, err, "login refused")

	fail = false
	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", tok)
}
