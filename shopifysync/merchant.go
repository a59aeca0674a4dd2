package shopifysync

import (
	"context"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ResolveMerchant picks the company user a sale is attributed to:
// the POS staff member, else the single user owning one of the order's
// coupon codes, else the location's default merchant. It only reads.
func ResolveMerchant(ctx context.Context, db *gorm.DB, order *shopify.Order, loc *models.CompanyLocation) (*int, error) {
	needStaff := order.IsPOS() && order.StaffID != ""
	needCoupon := order.IsWeb() && len(order.DiscountCodes) > 0
	if !needStaff && !needCoupon {
		return loc.DefaultMerchantId, nil
	}

	var users []models.CompanyUser
	if err := db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", loc.CompanyId, true).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, err
	}

	if needStaff {
		for _, u := range users {
			if u.HasStaffId(order.StaffID) {
				return &u.ID, nil
			}
		}
		return loc.DefaultMerchantId, nil
	}

	var matched []int
	for _, u := range users {
		for _, code := range order.DiscountCodes {
			if u.HasCoupon(code) {
				matched = append(matched, u.ID)
				break
			}
		}
	}
	switch len(matched) {
	case 0:
	case 1:
		return &matched[0], nil
	default:
		// Shared coupon codes do not attribute the sale to anyone in particular.
		config.LogWarn(config.GetLogger(), "shopifysync", "ResolveMerchant", "coupon code matches several merchants", logrus.Fields{
			"company_id":       loc.CompanyId,
			"shopify_order_id": order.ExternalID,
			"codes":            order.DiscountCodes,
			"user_ids":         matched,
		})
	}
	return loc.DefaultMerchantId, nil
}
