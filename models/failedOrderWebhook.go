package models

import "time"

const (
	FailedWebhookMessageLimit = 1000
	FailedWebhookStackLimit   = 4000
)

// FailedOrderWebhook records an ingestion failure with the exact payload received.
// At most one unresolved row exists per (company, location, shopify order id);
// repeated failures update it in place.
type FailedOrderWebhook struct {
	ID                int        `gorm:"primaryKey" json:"id"`
	CompanyId         string     `gorm:"size:64;not null;index:idx_failed_webhook_order,priority:1" json:"company_id"`
	CompanyLocationId int        `gorm:"not null;index:idx_failed_webhook_order,priority:2" json:"company_location_id"`
	ShopifyOrderId    string     `gorm:"size:64;index:idx_failed_webhook_order,priority:3" json:"shopify_order_id"`
	Topic             string     `gorm:"size:64" json:"topic"`
	RawPayload        []byte     `gorm:"not null" json:"-"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message"`
	ErrorStack        string     `gorm:"type:text" json:"error_stack"`
	Attempts          int        `gorm:"not null;default:1" json:"attempts"`
	LastAttemptAt     time.Time  `json:"last_attempt_at"`
	ResolvedAt        *time.Time `gorm:"index" json:"resolved_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
