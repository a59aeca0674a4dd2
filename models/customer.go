package models

import (
	"time"

	"gorm.io/datatypes"
)

// Customer is unique per (company_id, shopify_customer_id).
type Customer struct {
	ID                int            `gorm:"primaryKey" json:"id"`
	CompanyId         string         `gorm:"size:64;not null;uniqueIndex:uniq_company_shopify_customer,priority:1" json:"company_id"`
	ShopifyCustomerId string         `gorm:"size:64;not null;uniqueIndex:uniq_company_shopify_customer,priority:2" json:"shopify_customer_id"`
	FirstName         string         `gorm:"size:255" json:"first_name"`
	LastName          string         `gorm:"size:255" json:"last_name"`
	Email             string         `gorm:"size:255" json:"email"`
	Phone             string         `gorm:"size:32" json:"phone"`
	Address           datatypes.JSON `json:"address"`
	OrderCount        int            `gorm:"not null;default:0" json:"order_count"`
	LastPurchaseAt    *time.Time     `json:"last_purchase_at"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
