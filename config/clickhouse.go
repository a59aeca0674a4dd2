package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

func LoadClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Host:     StringFromEnv("CLICKHOUSE_HOST", "localhost"),
		Port:     IntFromEnv("CLICKHOUSE_PORT", 9000),
		Database: StringFromEnv("CLICKHOUSE_DATABASE", "cosmo"),
		Username: StringFromEnv("CLICKHOUSE_USERNAME", "default"),
		Password: StringFromEnv("CLICKHOUSE_PASSWORD", ""),
	}
}

func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (driver.Conn, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		DialTimeout:  30 * time.Second,
	}

	// The HTTPS port is the only one served over TLS.
	if cfg.Port == 8443 {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return conn, nil
}
