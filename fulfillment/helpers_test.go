package fulfillment

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cosmoos/cosmo_backend/analytics"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBaseURL = "https://cosmo.test"

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

func (r *recordingPublisher) triggers() []models.NotificationTrigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NotificationTrigger, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Trigger)
	}
	return out
}

// lastLinkToken returns the token from the most recent rider link sent.
func (r *recordingPublisher) lastLinkToken(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if link, ok := r.events[i].Vars["deliveryLink"]; ok {
			require.True(t, strings.HasPrefix(link, testBaseURL+"/public/delivery/"), link)
			return strings.TrimPrefix(link, testBaseURL+"/public/delivery/")
		}
	}
	t.Fatal("no rider link published")
	return ""
}

type fixture struct {
	db    *gorm.DB
	pub   *recordingPublisher
	sink  *analytics.MemorySink
	s     *Service
	loc   models.CompanyLocation
	staff models.CompanyUser
	rider models.CompanyUser
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	staff := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", Name: "Sunil"})
	rider := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", Name: "Kamal", Phone: "0712345678", IsRider: true})

	pub := &recordingPublisher{}
	sink := &analytics.MemorySink{}
	s := NewService(db, pub, sink)
	s.PublicBaseURL = testBaseURL
	return fixture{db: db, pub: pub, sink: sink, s: s, loc: fx.Location, staff: staff, rider: rider}
}

func (f fixture) seedOrder(t *testing.T, shopifyId string, stage models.FulfillmentStage) models.Order {
	t.Helper()
	order := models.Order{
		CompanyId:         "c1",
		ShopifyOrderId:    shopifyId,
		CompanyLocationId: f.loc.ID,
		OrderNumber:       "1001",
		CustomerName:      "Nimal Perera",
		Phone:             "0771234567",
		TotalPrice:        decimal.RequireFromString("4350.50"),
		FulfillmentStage:  stage,
	}
	require.NoError(t, f.db.Create(&order).Error)
	return order
}

func (f fixture) reload(t *testing.T, id int) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.db.Where("id = ?", id).Take(&order).Error)
	return order
}

func (f fixture) dispatchToRider(t *testing.T, orderID int) string {
	t.Helper()
	_, err := f.s.Dispatch(t.Context(), "c1", orderID, f.staff.ID, DispatchInput{
		Method:  models.DispatchMethodRider,
		RiderID: &f.rider.ID,
	})
	require.NoError(t, err)
	return f.pub.lastLinkToken(t)
}
