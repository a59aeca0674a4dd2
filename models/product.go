package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Name of the category assigned when Shopify gives no product type.
const UncategorizedCategoryName = "Uncategorized"

// ProductItem is a purchasable variant, unique per (company_location_id, shopify_variant_id).
type ProductItem struct {
	ID                int             `gorm:"primaryKey" json:"id"`
	CompanyId         string          `gorm:"size:64;index;not null" json:"company_id"`
	CompanyLocationId int             `gorm:"not null;uniqueIndex:uniq_location_variant,priority:1" json:"company_location_id"`
	ShopifyVariantId  string          `gorm:"size:64;not null;uniqueIndex:uniq_location_variant,priority:2" json:"shopify_variant_id"`
	ShopifyProductId  string          `gorm:"size:64;index" json:"shopify_product_id"`
	Title             string          `gorm:"size:255" json:"title"`
	VariantTitle      string          `gorm:"size:255" json:"variant_title"`
	Sku               string          `gorm:"size:128" json:"sku"`
	Price             decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	VendorId          *int            `gorm:"index" json:"vendor_id"`
	CategoryId        *int            `gorm:"index" json:"category_id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Vendor struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	CompanyId string    `gorm:"size:64;not null;uniqueIndex:uniq_company_vendor,priority:1" json:"company_id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uniq_company_vendor,priority:2" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Category struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	CompanyId string    `gorm:"size:64;not null;uniqueIndex:uniq_company_category,priority:1" json:"company_id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uniq_company_category,priority:2" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
