package config

import (
	"os"
	"strings"
)

const (
	NotifyTransportInline = "inline"
	NotifyTransportPubSub = "pubsub"
	NotifyTransportAMQP   = "amqp"
)

// NotifyTransport selects how post-commit notification events leave the request.
//
// Set via env:
// - NOTIFY_TRANSPORT=inline|pubsub|amqp (default inline)
func NotifyTransport() string {
	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_TRANSPORT"))); v {
	case NotifyTransportPubSub, NotifyTransportAMQP:
		return v
	default:
		return NotifyTransportInline
	}
}

// StageAnalyticsEnabled turns on the ClickHouse stage-transition sink.
//
// Set via env:
// - STAGE_ANALYTICS_ENABLED=true
func StageAnalyticsEnabled() bool {
	return BoolFromEnv("STAGE_ANALYTICS_ENABLED", false)
}

func SkipMigrations() bool {
	return BoolFromEnv("SKIP_MIGRATIONS", false)
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

func BoolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
