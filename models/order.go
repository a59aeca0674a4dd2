package models

import (
	"context"
	"errors"
	"time"

	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Order mirrors one Shopify order. Unique per (company_id, shopify_order_id).
type Order struct {
	ID                int    `gorm:"primaryKey" json:"id"`
	CompanyId         string `gorm:"size:64;not null;uniqueIndex:uniq_company_shopify_order,priority:1" json:"company_id"`
	ShopifyOrderId    string `gorm:"size:64;not null;uniqueIndex:uniq_company_shopify_order,priority:2" json:"shopify_order_id"`
	CompanyLocationId int    `gorm:"index;not null" json:"company_location_id"`

	OrderName    string `gorm:"size:64" json:"order_name"`
	OrderNumber  string `gorm:"size:64" json:"order_number"`
	Email        string `gorm:"size:255" json:"email"`
	Phone        string `gorm:"size:32" json:"phone"`
	CustomerName string `gorm:"size:255" json:"customer_name"`
	Currency     string `gorm:"size:8" json:"currency"`

	SubtotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"subtotal_price"`
	TotalTax       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_tax"`
	TotalDiscounts decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_discounts"`
	TotalShipping  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_shipping"`
	TotalPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_price"`

	FinancialStatus      string         `gorm:"size:32" json:"financial_status"`
	FulfillmentStatus    string         `gorm:"size:32" json:"fulfillment_status"`
	SourceName           string         `gorm:"size:64" json:"source_name"`
	DiscountCodes        datatypes.JSON `json:"discount_codes"`
	DiscountApplications datatypes.JSON `json:"discount_applications"`
	ShippingLines        datatypes.JSON `json:"shipping_lines"`
	ShippingAddress      datatypes.JSON `json:"shipping_address"`
	BillingAddress       datatypes.JSON `json:"billing_address"`
	Note                 string         `gorm:"type:text" json:"note"`
	Tags                 string         `gorm:"type:text" json:"tags"`
	ShopifyCreatedAt     time.Time      `json:"shopify_created_at"`

	CustomerId *int `gorm:"index" json:"customer_id"`
	MerchantId *int `gorm:"index" json:"merchant_id"`

	FulfillmentStage FulfillmentStage `gorm:"size:32;not null;index" json:"fulfillment_stage"`
	HoldReason       *string          `gorm:"type:text" json:"hold_reason"`
	HoldAt           *time.Time       `json:"hold_at"`
	HoldById         *int             `json:"hold_by_id"`

	DispatchMethod *DispatchMethod `gorm:"size:16" json:"dispatch_method"`
	RiderId        *int            `gorm:"index" json:"rider_id"`
	CourierName    *string         `gorm:"size:255" json:"courier_name"`
	TrackingNumber *string         `gorm:"size:255" json:"tracking_number"`
	// Only hashes of the rider link token are stored. The active hash is
	// cleared on confirmation and moved to ConsumedDeliveryTokenHash.
	DeliveryTokenHash         *string `gorm:"size:64;uniqueIndex" json:"-"`
	ConsumedDeliveryTokenHash *string `gorm:"size:64;uniqueIndex" json:"-"`
	DeliveryConfirmedByRider  bool    `gorm:"not null;default:false" json:"delivery_confirmed_by_rider"`

	SampleFreeIssueAt    *time.Time `json:"sample_free_issue_at"`
	SampleFreeIssueById  *int       `json:"sample_free_issue_by_id"`
	PrintAt              *time.Time `json:"print_at"`
	PrintById            *int       `json:"print_by_id"`
	ReadyToDispatchAt    *time.Time `json:"ready_to_dispatch_at"`
	ReadyToDispatchById  *int       `json:"ready_to_dispatch_by_id"`
	DispatchedAt         *time.Time `json:"dispatched_at"`
	DispatchedById       *int       `json:"dispatched_by_id"`
	DeliveryCompleteAt   *time.Time `json:"delivery_complete_at"`
	DeliveryCompleteById *int       `json:"delivery_complete_by_id"`
	InvoiceCompleteAt    *time.Time `json:"invoice_complete_at"`
	InvoiceCompleteById  *int       `json:"invoice_complete_by_id"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderId" json:"line_items,omitempty"`
	Remarks   []OrderRemark   `gorm:"foreignKey:OrderId" json:"remarks,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o Order) IsOnHold() bool { return o.HoldAt != nil }

// OrderLineItem is unique per (order_id, shopify_line_item_id).
type OrderLineItem struct {
	ID                int             `gorm:"primaryKey" json:"id"`
	CompanyId         string          `gorm:"size:64;index;not null" json:"company_id"`
	OrderId           int             `gorm:"not null;uniqueIndex:uniq_order_line_item,priority:1" json:"order_id"`
	ShopifyLineItemId string          `gorm:"size:64;not null;uniqueIndex:uniq_order_line_item,priority:2" json:"shopify_line_item_id"`
	ProductItemId     int             `gorm:"index;not null" json:"product_item_id"`
	Title             string          `gorm:"size:255" json:"title"`
	VariantTitle      string          `gorm:"size:255" json:"variant_title"`
	Sku               string          `gorm:"size:128" json:"sku"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderRemark struct {
	ID             int              `gorm:"primaryKey" json:"id"`
	CompanyId      string           `gorm:"size:64;index;not null" json:"company_id"`
	OrderId        int              `gorm:"index;not null" json:"order_id"`
	Stage          FulfillmentStage `gorm:"size:32;not null" json:"stage"`
	Body           string           `gorm:"type:text;not null" json:"body"`
	Visibility     RemarkVisibility `gorm:"size:16;not null" json:"visibility"`
	PrintOnInvoice bool             `gorm:"not null;default:false" json:"print_on_invoice"`
	CreatedById    int              `gorm:"not null" json:"created_by_id"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func GetOrder(ctx context.Context, db *gorm.DB, companyId string, id int, preload ...string) (*Order, error) {
	q := db.WithContext(ctx)
	for _, p := range preload {
		q = q.Preload(p)
	}
	var order Order
	if err := q.Where("company_id = ? AND id = ?", companyId, id).Take(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &order, nil
}
