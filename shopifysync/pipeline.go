// Package shopifysync turns verified Shopify order webhooks into orders,
// line items, customers and catalog entries in one transaction, and keeps
// a ledger of deliveries that failed to apply.
package shopifysync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/shopify"
	"github.com/cosmoos/cosmo_backend/workflow"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/cosmoos/cosmo_backend/shopifysync")

// Result describes an applied delivery. Created is false for re-deliveries.
type Result struct {
	Order   *models.Order
	Created bool
}

type Pipeline struct {
	db        *gorm.DB
	publisher notification.Publisher
	logger    *logrus.Logger
	LockTTL   time.Duration
}

func NewPipeline(db *gorm.DB, publisher notification.Publisher) *Pipeline {
	return &Pipeline{db: db, publisher: publisher, logger: config.GetLogger(), LockTTL: 30 * time.Second}
}

// Ingest validates raw and applies it. Validation failures come back as
// *shopify.ValidationError and are not recorded; any later failure is
// recorded in the ledger and returned as *IngestionError.
func (p *Pipeline) Ingest(ctx context.Context, loc *models.CompanyLocation, raw []byte, topic string) (*Result, error) {
	order, err := shopify.ParseOrder(raw)
	if err != nil {
		return nil, err
	}
	return p.Apply(ctx, loc, order, raw, topic)
}

// Apply persists an already validated order. raw is what gets stored in
// the ledger if the transaction fails.
func (p *Pipeline) Apply(ctx context.Context, loc *models.CompanyLocation, order *shopify.Order, raw []byte, topic string) (*Result, error) {
	res, err := p.process(ctx, loc, order)
	if err != nil {
		ledgerID, recErr := p.recordFailure(ctx, loc, order.ExternalID, topic, raw, err)
		if recErr != nil {
			config.LogError(p.logger, "shopifysync", "Apply", "record failed webhook", order.ExternalID, recErr)
		}
		config.LogError(p.logger, "shopifysync", "Apply", "ingest order", logrus.Fields{
			"company_id":       loc.CompanyId,
			"location_id":      loc.ID,
			"shopify_order_id": order.ExternalID,
			"ledger_id":        ledgerID,
		}, err)
		return nil, &IngestionError{LedgerID: ledgerID, Retryable: true, Err: err}
	}
	return res, nil
}

// process runs the whole unit of work and publishes order_received after
// commit when the order is new.
func (p *Pipeline) process(ctx context.Context, loc *models.CompanyLocation, order *shopify.Order) (res *Result, err error) {
	ctx, span := tracer.Start(ctx, "shopifysync.process", trace.WithAttributes(
		attribute.String("company_id", loc.CompanyId),
		attribute.String("shopify_order_id", order.ExternalID),
		attribute.Int("line_items", len(order.LineItems)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Bool("created", res.Created))
		}
		span.End()
	}()

	release := p.lock(ctx, loc.CompanyId, order.ExternalID)
	defer release()

	err = workflow.RunInTransaction(ctx, p.db, func(tx *gorm.DB) error {
		var err error
		res, err = applyOrder(ctx, tx, loc, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		notification.PublishAfterCommit(ctx, p.publisher, notification.NewEvent(
			loc.CompanyId, res.Order.ID, models.TriggerOrderReceived, nil, nil))
	}
	return res, nil
}

// lock takes a short best-effort Redis lock per order. The unique key on
// (company_id, shopify_order_id) is what actually prevents duplicates.
func (p *Pipeline) lock(ctx context.Context, companyId, externalId string) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	key := fmt.Sprintf("lock:order:%s:%s", companyId, externalId)
	lock, err := locker.Obtain(ctx, key, p.LockTTL, nil)
	if err != nil {
		if !errors.Is(err, redislock.ErrNotObtained) {
			config.LogError(p.logger, "shopifysync", "lock", "obtain", key, err)
		} else {
			config.LogWarn(p.logger, "shopifysync", "lock", "order lock busy; relying on unique key", logrus.Fields{"key": key})
		}
		return func() {}
	}
	return func() { _ = lock.Release(context.Background()) }
}

func applyOrder(ctx context.Context, tx *gorm.DB, loc *models.CompanyLocation, src *shopify.Order) (*Result, error) {
	find := func(dest *models.Order) error {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ? AND shopify_order_id = ?", loc.CompanyId, src.ExternalID).
			Take(dest).Error
	}

	missingCreatedAt := src.CreatedAt.IsZero()
	if missingCreatedAt {
		src = withCreatedAt(src, time.Now().UTC())
	}

	var order models.Order
	created := false
	err := find(&order)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		merchantId, err := ResolveMerchant(ctx, tx, src, loc)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "resolve merchant")
		}
		order = newOrder(loc, src)
		order.MerchantId = merchantId
		created, err = createOrReload(tx, "sp_order", &order, func() error {
			order = models.Order{}
			return find(&order)
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "create order")
		}
	case err != nil:
		return nil, pkgerrors.Wrap(err, "load order")
	}
	if !created && missingCreatedAt {
		// A re-delivery without created_at keeps the stored time so it never
		// reads as a newer purchase.
		src = withCreatedAt(src, order.ShopifyCreatedAt)
	}

	customer, err := ReconcileCustomer(ctx, tx, loc.CompanyId, src, created)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "reconcile customer")
	}
	if customer != nil {
		order.CustomerId = &customer.ID
	}

	if !created || order.CustomerId != nil {
		updates := refreshedFields(src)
		updates["customer_id"] = order.CustomerId
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return nil, pkgerrors.Wrap(err, "update order")
		}
	}

	for _, item := range src.LineItems {
		if _, err := ReconcileLineItem(ctx, tx, loc, order.ID, item); err != nil {
			return nil, pkgerrors.Wrapf(err, "reconcile line item %s", item.ExternalID)
		}
	}

	if err := tx.Preload("LineItems").Where("id = ?", order.ID).Take(&order).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "reload order")
	}
	return &Result{Order: &order, Created: created}, nil
}

func newOrder(loc *models.CompanyLocation, src *shopify.Order) models.Order {
	o := models.Order{
		CompanyId:         loc.CompanyId,
		ShopifyOrderId:    src.ExternalID,
		CompanyLocationId: loc.ID,
		FulfillmentStage:  models.StageOrderReceived,
	}
	o.OrderName = src.Name
	o.OrderNumber = src.OrderNumber
	o.Email = src.Email
	o.Phone = orderPhone(src)
	o.CustomerName = customerName(src)
	o.Currency = src.Currency
	o.SubtotalPrice = src.SubtotalPrice
	o.TotalTax = src.TotalTax
	o.TotalDiscounts = src.TotalDiscounts
	o.TotalShipping = src.TotalShipping
	o.TotalPrice = src.TotalPrice
	o.FinancialStatus = src.FinancialStatus
	o.FulfillmentStatus = src.FulfillmentStatus
	o.SourceName = src.SourceName
	o.DiscountCodes = datatypes.JSON(src.DiscountCodesRaw)
	o.DiscountApplications = datatypes.JSON(src.DiscountApplications)
	o.ShippingLines = datatypes.JSON(src.ShippingLines)
	o.ShippingAddress = datatypes.JSON(src.ShippingAddress)
	o.BillingAddress = datatypes.JSON(src.BillingAddress)
	o.Note = src.Note
	o.Tags = src.Tags
	o.ShopifyCreatedAt = src.CreatedAt
	return o
}

func withCreatedAt(src *shopify.Order, at time.Time) *shopify.Order {
	cp := *src
	cp.CreatedAt = at
	return &cp
}

// refreshedFields are overwritten on every delivery. Fulfillment state and
// merchant attribution are never touched here.
func refreshedFields(src *shopify.Order) map[string]interface{} {
	return map[string]interface{}{
		"order_name":            src.Name,
		"order_number":          src.OrderNumber,
		"email":                 src.Email,
		"phone":                 orderPhone(src),
		"customer_name":         customerName(src),
		"currency":              src.Currency,
		"subtotal_price":        src.SubtotalPrice,
		"total_tax":             src.TotalTax,
		"total_discounts":       src.TotalDiscounts,
		"total_shipping":        src.TotalShipping,
		"total_price":           src.TotalPrice,
		"financial_status":      src.FinancialStatus,
		"fulfillment_status":    src.FulfillmentStatus,
		"discount_codes":        datatypes.JSON(src.DiscountCodesRaw),
		"discount_applications": datatypes.JSON(src.DiscountApplications),
		"shipping_lines":        datatypes.JSON(src.ShippingLines),
		"shipping_address":      datatypes.JSON(src.ShippingAddress),
		"billing_address":       datatypes.JSON(src.BillingAddress),
		"note":                  src.Note,
		"tags":                  src.Tags,
	}
}

func orderPhone(src *shopify.Order) string {
	if src.Phone != "" || src.Customer == nil {
		return src.Phone
	}
	return src.Customer.Phone
}

func customerName(src *shopify.Order) string {
	if src.Customer == nil {
		return ""
	}
	return src.Customer.FullName()
}
