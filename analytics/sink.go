// Package analytics ships fulfillment stage transitions to ClickHouse.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cosmoos/cosmo_backend/config"
	"github.com/sirupsen/logrus"
)

// Transition is one committed fulfillment action.
type Transition struct {
	CompanyID string
	OrderID   int
	Action    string
	FromStage string
	ToStage   string
	ActorID   *int
	ByRider   bool
	At        time.Time
}

// Sink receives transitions after commit. Record must not block on I/O.
type Sink interface {
	Record(ctx context.Context, t Transition)
}

type NopSink struct{}

func (NopSink) Record(context.Context, Transition) {}

// MemorySink keeps transitions in memory.
type MemorySink struct {
	mu   sync.Mutex
	rows []Transition
}

func (m *MemorySink) Record(_ context.Context, t Transition) {
	m.mu.Lock()
	m.rows = append(m.rows, t)
	m.mu.Unlock()
}

func (m *MemorySink) Transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transition(nil), m.rows...)
}

// ClickHouseSink inserts one Fact_Stage_Transition row per transition from
// a background goroutine. Insert failures are logged and dropped.
type ClickHouseSink struct {
	conn     driver.Conn
	database string
	logger   *logrus.Logger
	timeout  time.Duration
}

func NewClickHouseSink(conn driver.Conn, database string) *ClickHouseSink {
	return &ClickHouseSink{conn: conn, database: database, logger: config.GetLogger(), timeout: 5 * time.Second}
}

// NewSinkFromEnv returns a ClickHouse sink when STAGE_ANALYTICS_ENABLED is
// set and the server answers, and a NopSink otherwise.
func NewSinkFromEnv(ctx context.Context) (Sink, func()) {
	if !config.StageAnalyticsEnabled() {
		return NopSink{}, func() {}
	}
	cfg := config.LoadClickHouseConfig()
	conn, err := config.OpenClickHouse(ctx, cfg)
	if err != nil {
		config.LogError(config.GetLogger(), "analytics", "NewSinkFromEnv", "open clickhouse", cfg.Host, err)
		return NopSink{}, func() {}
	}
	return NewClickHouseSink(conn, cfg.Database), func() { _ = conn.Close() }
}

func (s *ClickHouseSink) Record(ctx context.Context, t Transition) {
	go func() {
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.insert(ictx, t); err != nil {
			config.LogError(s.logger, "analytics", "Record", "insert transition", logrus.Fields{
				"company_id": t.CompanyID,
				"order_id":   t.OrderID,
				"action":     t.Action,
			}, err)
		}
	}()
}

func (s *ClickHouseSink) insert(ctx context.Context, t Transition) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.Fact_Stage_Transition (
			company_id, order_id, action, from_stage, to_stage,
			actor_id, by_rider, date_key, event_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.database)

	var actor int64
	if t.ActorID != nil {
		actor = int64(*t.ActorID)
	}
	return s.conn.Exec(ctx, query,
		t.CompanyID,
		int64(t.OrderID),
		t.Action,
		t.FromStage,
		t.ToStage,
		actor,
		t.ByRider,
		t.At.UTC().Format("20060102"),
		t.At.UTC(),
	)
}
