package shopifysync

import (
	"context"
	"errors"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconcileCustomer upserts the order's customer. isNewOrder is false for a
// re-delivered webhook, which must not count the purchase again.
// Returns nil when the order has no customer block.
func ReconcileCustomer(ctx context.Context, tx *gorm.DB, companyId string, order *shopify.Order, isNewOrder bool) (*models.Customer, error) {
	src := order.Customer
	if src == nil || src.ExternalID == "" {
		return nil, nil
	}
	tx = tx.WithContext(ctx)

	find := func(dest *models.Customer) error {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("company_id = ? AND shopify_customer_id = ?", companyId, src.ExternalID).
			Take(dest).Error
	}

	var cust models.Customer
	err := find(&cust)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cust = models.Customer{
			CompanyId:         companyId,
			ShopifyCustomerId: src.ExternalID,
			FirstName:         src.FirstName,
			LastName:          src.LastName,
			Email:             src.Email,
			Phone:             src.Phone,
			Address:           datatypes.JSON(src.Address),
		}
		if isNewOrder {
			at := order.CreatedAt
			cust.OrderCount = 1
			cust.LastPurchaseAt = &at
		}
		created, err := createOrReload(tx, "sp_customer", &cust, func() error {
			cust = models.Customer{}
			return find(&cust)
		})
		if err != nil {
			return nil, err
		}
		if created {
			return &cust, nil
		}
	} else if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"first_name": src.FirstName,
		"last_name":  src.LastName,
		"email":      src.Email,
		"phone":      src.Phone,
		"address":    datatypes.JSON(src.Address),
	}
	switch {
	case isNewOrder:
		at := order.CreatedAt
		updates["order_count"] = gorm.Expr("order_count + ?", 1)
		updates["last_purchase_at"] = at
		cust.OrderCount++
		cust.LastPurchaseAt = &at
	case cust.LastPurchaseAt != nil && order.CreatedAt.After(*cust.LastPurchaseAt):
		at := order.CreatedAt
		updates["last_purchase_at"] = at
		cust.LastPurchaseAt = &at
	}
	if err := tx.Model(&models.Customer{}).Where("id = ?", cust.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	cust.FirstName, cust.LastName, cust.Email, cust.Phone = src.FirstName, src.LastName, src.Email, src.Phone
	cust.Address = datatypes.JSON(src.Address)
	return &cust, nil
}
