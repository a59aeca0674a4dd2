package shopifysync

import (
	"testing"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest_AutoCreatesVendorAndCategories(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.p.Ingest(t.Context(), &f.fx.Location, payload("4500.00"), "orders/create")
	require.NoError(t, err)

	var vendors []models.Vendor
	require.NoError(t, f.db.Find(&vendors).Error)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Cosmo", vendors[0].Name)

	var categories []models.Category
	require.NoError(t, f.db.Order("name").Find(&categories).Error)
	require.Len(t, categories, 2)
	assert.Equal(t, "Apparel", categories[0].Name)
	assert.Equal(t, models.UncategorizedCategoryName, categories[1].Name)

	var capItem models.ProductItem
	require.NoError(t, f.db.Where("shopify_variant_id = ?", "44002").Take(&capItem).Error)
	assert.Nil(t, capItem.VendorId)
	require.NotNil(t, capItem.CategoryId)
	assert.Equal(t, categories[1].ID, *capItem.CategoryId)
	assert.True(t, capItem.Price.Equal(decimal.NewFromInt(1500)))
}

func TestIngest_ExistingProductItemIsNotModified(t *testing.T) {
	f := newPipelineFixture(t)
	existing := models.ProductItem{
		CompanyId:         "c1",
		CompanyLocationId: f.fx.Location.ID,
		ShopifyVariantId:  "44001",
		Title:             "Curated tee",
		Price:             decimal.RequireFromString("1200"),
	}
	require.NoError(t, f.db.Create(&existing).Error)

	res, err := f.p.Ingest(t.Context(), &f.fx.Location, payload("4500.00"), "orders/create")
	require.NoError(t, err)

	var reloaded models.ProductItem
	require.NoError(t, f.db.First(&reloaded, existing.ID).Error)
	assert.Equal(t, "Curated tee", reloaded.Title)
	assert.True(t, reloaded.Price.Equal(decimal.RequireFromString("1200")))

	var line models.OrderLineItem
	require.NoError(t, f.db.Where("order_id = ? AND shopify_line_item_id = ?", res.Order.ID, "9001").Take(&line).Error)
	assert.Equal(t, existing.ID, line.ProductItemId)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, line.Price.Equal(decimal.RequireFromString("1500")))
}
