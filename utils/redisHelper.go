package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/cosmoos/cosmo_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN_MINUTES"))
	if err != nil || lifespan <= 0 {
		lifespan = 10
	}
	return time.Duration(lifespan) * time.Minute
}

// CachedFetch reads key from Redis and falls back to load, caching the
// result. Redis failures are logged and never fail the lookup.
func CachedFetch[T any](ctx context.Context, key string, load func(context.Context) (*T, error)) (*T, error) {
	logger := config.GetLogger()

	var cached T
	exists, err := config.GetRedisObject(ctx, key, &cached)
	if err != nil {
		config.LogError(logger, "utils", "CachedFetch", "GetRedisObject", key, err)
	} else if exists {
		return &cached, nil
	}

	obj, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, key, obj, GetCacheLifespan()); err != nil {
		config.LogError(logger, "utils", "CachedFetch", "SetRedisObject", key, err)
	}
	return obj, nil
}
