package shopifysync

import (
	"context"
	"errors"
	"fmt"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidLineItem = errors.New("invalid line item")

// ReconcileLineItem makes sure the variant exists as a ProductItem of the
// location, creating its vendor and category on first sight, then upserts
// the order line keyed by (order, shopify line item id). Existing
// ProductItems are left as they are.
func ReconcileLineItem(ctx context.Context, tx *gorm.DB, loc *models.CompanyLocation, orderId int, item shopify.LineItem) (*models.OrderLineItem, error) {
	if !item.Price.Valid {
		return nil, fmt.Errorf("%w %s: price missing", ErrInvalidLineItem, item.ExternalID)
	}
	if item.Quantity < 1 {
		return nil, fmt.Errorf("%w %s: quantity %d", ErrInvalidLineItem, item.ExternalID, item.Quantity)
	}
	if item.VariantID == "" {
		return nil, fmt.Errorf("%w %s: variant id missing", ErrInvalidLineItem, item.ExternalID)
	}
	tx = tx.WithContext(ctx)

	product, err := ensureProductItem(tx, loc, item)
	if err != nil {
		return nil, err
	}

	find := func(dest *models.OrderLineItem) error {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND shopify_line_item_id = ?", orderId, item.ExternalID).
			Take(dest).Error
	}

	var line models.OrderLineItem
	err = find(&line)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		line = models.OrderLineItem{
			CompanyId:         loc.CompanyId,
			OrderId:           orderId,
			ShopifyLineItemId: item.ExternalID,
			ProductItemId:     product.ID,
			Title:             item.Title,
			VariantTitle:      item.VariantTitle,
			Sku:               item.SKU,
			Quantity:          item.Quantity,
			Price:             item.Price.Decimal,
		}
		created, err := createOrReload(tx, "sp_line_item", &line, func() error {
			line = models.OrderLineItem{}
			return find(&line)
		})
		if err != nil || created {
			return &line, err
		}
	}

	err = tx.Model(&models.OrderLineItem{}).Where("id = ?", line.ID).Updates(map[string]interface{}{
		"product_item_id": product.ID,
		"title":           item.Title,
		"variant_title":   item.VariantTitle,
		"sku":             item.SKU,
		"quantity":        item.Quantity,
		"price":           item.Price.Decimal,
	}).Error
	if err != nil {
		return nil, err
	}
	line.ProductItemId = product.ID
	line.Title, line.VariantTitle, line.Sku = item.Title, item.VariantTitle, item.SKU
	line.Quantity, line.Price = item.Quantity, item.Price.Decimal
	return &line, nil
}

func ensureProductItem(tx *gorm.DB, loc *models.CompanyLocation, item shopify.LineItem) (*models.ProductItem, error) {
	find := func(dest *models.ProductItem) error {
		return tx.Where("company_location_id = ? AND shopify_variant_id = ?", loc.ID, item.VariantID).Take(dest).Error
	}

	var product models.ProductItem
	err := find(&product)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	product = models.ProductItem{
		CompanyId:         loc.CompanyId,
		CompanyLocationId: loc.ID,
		ShopifyVariantId:  item.VariantID,
		ShopifyProductId:  item.ProductID,
		Title:             item.Title,
		VariantTitle:      item.VariantTitle,
		Sku:               item.SKU,
		Price:             item.Price.Decimal,
	}
	if item.Vendor != "" {
		vendor, err := ensureVendor(tx, loc.CompanyId, item.Vendor)
		if err != nil {
			return nil, err
		}
		product.VendorId = &vendor.ID
	}
	categoryName := item.ProductType
	if categoryName == "" {
		categoryName = models.UncategorizedCategoryName
	}
	category, err := ensureCategory(tx, loc.CompanyId, categoryName)
	if err != nil {
		return nil, err
	}
	product.CategoryId = &category.ID

	if _, err := createOrReload(tx, "sp_product_item", &product, func() error {
		product = models.ProductItem{}
		return find(&product)
	}); err != nil {
		return nil, err
	}
	return &product, nil
}

func ensureVendor(tx *gorm.DB, companyId, name string) (*models.Vendor, error) {
	var v models.Vendor
	find := func() error {
		return tx.Where("company_id = ? AND name = ?", companyId, name).Take(&v).Error
	}
	err := find()
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	v = models.Vendor{CompanyId: companyId, Name: name}
	if _, err := createOrReload(tx, "sp_vendor", &v, func() error { v = models.Vendor{}; return find() }); err != nil {
		return nil, err
	}
	return &v, nil
}

func ensureCategory(tx *gorm.DB, companyId, name string) (*models.Category, error) {
	var c models.Category
	find := func() error {
		return tx.Where("company_id = ? AND name = ?", companyId, name).Take(&c).Error
	}
	err := find()
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c = models.Category{CompanyId: companyId, Name: name}
	if _, err := createOrReload(tx, "sp_category", &c, func() error { c = models.Category{}; return find() }); err != nil {
		return nil, err
	}
	return &c, nil
}
