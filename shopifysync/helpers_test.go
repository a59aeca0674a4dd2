package shopifysync

import (
	"context"
	"sync"
	"testing"

	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const orderPayload = `{
  "id": 820982911946154500,
  "name": "#1001",
  "order_number": 1001,
  "email": "nimal@example.com",
  "currency": "LKR",
  "subtotal_price": "4500.00",
  "total_tax": "0.00",
  "total_discounts": "0.00",
  "total_price": "%s",
  "source_name": "web",
  "shipping_address": {"city": "Colombo"},
  "customer": {"id": 7001, "first_name": "Nimal", "last_name": "Perera", "phone": "0771234567"},
  "created_at": "2024-03-01T10:00:00Z",
  "line_items": [
    {"id": 9001, "variant_id": 44001, "product_id": 3001, "title": "Tee", "sku": "TEE-M", "price": "1500.00", "quantity": 2, "vendor": "Cosmo", "product_type": "Apparel"},
    {"id": 9002, "variant_id": 44002, "product_id": 3002, "title": "Cap", "price": "1500.00", "quantity": 1}
  ]
}`

type recordingPublisher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, ev notification.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type pipelineFixture struct {
	db  *gorm.DB
	pub *recordingPublisher
	p   *Pipeline
	fx  testutil.Fixture
}

func newPipelineFixture(t *testing.T) pipelineFixture {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1", "secret-a")
	pub := &recordingPublisher{}
	return pipelineFixture{db: db, pub: pub, p: NewPipeline(db, pub), fx: fx}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

