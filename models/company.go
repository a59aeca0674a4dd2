package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cosmoos/cosmo_backend/utils"
	"gorm.io/gorm"
)

type Company struct {
	ID   string `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
	// Any one of these may sign inbound Shopify webhooks (rotation keeps the old one live).
	ShopifyWebhookSecrets []string  `gorm:"type:text;serializer:json" json:"-"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type CompanyLocation struct {
	ID                int       `gorm:"primaryKey" json:"id"`
	CompanyId         string    `gorm:"size:64;index;not null" json:"company_id"`
	Name              string    `gorm:"size:255;not null" json:"name"`
	ShopifyShopDomain string    `gorm:"size:255" json:"shopify_shop_domain"`
	ShopifyLocationId string    `gorm:"size:64;uniqueIndex;not null" json:"shopify_location_id"`
	DefaultMerchantId *int      `json:"default_merchant_id"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type CompanyUser struct {
	ID        int    `gorm:"primaryKey" json:"id"`
	CompanyId string `gorm:"size:64;index;not null" json:"company_id"`
	Name      string `gorm:"size:255;not null" json:"name"`
	Email     string `gorm:"size:255" json:"email"`
	Phone     string `gorm:"size:32" json:"phone"`
	IsActive  bool   `gorm:"not null" json:"is_active"`
	IsRider   bool   `gorm:"not null;default:false" json:"is_rider"`
	// POS staff ids this user appears under in Shopify.
	ExternalStaffIds []string `gorm:"type:text;serializer:json" json:"external_staff_ids"`
	// Web coupon codes attributed to this user.
	CouponCodes []string  `gorm:"type:text;serializer:json" json:"coupon_codes"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasStaffId reports whether id is one of the user's POS staff ids.
func (u CompanyUser) HasStaffId(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	for _, s := range u.ExternalStaffIds {
		if strings.TrimSpace(s) == id {
			return true
		}
	}
	return false
}

// HasCoupon compares case-insensitively after trimming.
func (u CompanyUser) HasCoupon(code string) bool {
	code = utils.FoldCode(code)
	if code == "" {
		return false
	}
	for _, c := range u.CouponCodes {
		if utils.FoldCode(c) == code {
			return true
		}
	}
	return false
}

type locationRef struct {
	ID int `json:"id"`
}

// GetLocationByShopifyId resolves the webhook target location. Locations
// are looked up before any tenant is known, so the tenant scope is bypassed.
// Only the shopify id to location id mapping is cached; the row itself is
// always read fresh so edits such as default_merchant_id apply at once.
func GetLocationByShopifyId(ctx context.Context, db *gorm.DB, shopifyLocationId string) (*CompanyLocation, error) {
	shopifyLocationId = strings.TrimSpace(shopifyLocationId)
	if shopifyLocationId == "" {
		return nil, utils.ErrorRecordNotFound
	}
	db = db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true))
	byShopifyId := func(dest *CompanyLocation) error {
		err := db.Where("shopify_location_id = ?", shopifyLocationId).Take(dest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		return err
	}

	ref, err := utils.CachedFetch(ctx, "CompanyLocation:shopify:"+shopifyLocationId, func(ctx context.Context) (*locationRef, error) {
		var loc CompanyLocation
		if err := byShopifyId(&loc); err != nil {
			return nil, err
		}
		return &locationRef{ID: loc.ID}, nil
	})
	if err != nil {
		return nil, err
	}

	var loc CompanyLocation
	err = db.Where("id = ?", ref.ID).Take(&loc).Error
	if err == nil && loc.ShopifyLocationId == shopifyLocationId {
		return &loc, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	// The cached id went stale (row deleted or re-mapped).
	loc = CompanyLocation{}
	if err := byShopifyId(&loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func GetCompany(ctx context.Context, db *gorm.DB, companyId string) (*Company, error) {
	var company Company
	if err := db.WithContext(ctx).Where("id = ?", companyId).Take(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &company, nil
}

func GetCompanyUser(ctx context.Context, db *gorm.DB, companyId string, id int) (*CompanyUser, error) {
	var user CompanyUser
	if err := db.WithContext(ctx).Where("company_id = ? AND id = ?", companyId, id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}
