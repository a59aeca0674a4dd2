package models_test

import (
	"testing"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/testutil"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLocationByShopifyId_ReadsCurrentRow(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	merchant := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", Name: "Kasun"})

	loc, err := models.GetLocationByShopifyId(t.Context(), db, " loc-1 ")
	require.NoError(t, err)
	assert.Equal(t, fx.Location.ID, loc.ID)
	assert.Nil(t, loc.DefaultMerchantId)

	require.NoError(t, db.Model(&models.CompanyLocation{}).Where("id = ?", loc.ID).
		Update("default_merchant_id", merchant.ID).Error)

	loc, err = models.GetLocationByShopifyId(t.Context(), db, "loc-1")
	require.NoError(t, err)
	require.NotNil(t, loc.DefaultMerchantId)
	assert.Equal(t, merchant.ID, *loc.DefaultMerchantId)
}

func TestGetLocationByShopifyId_UnknownIsNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedCompany(t, db, "c1", "loc-1")

	for _, id := range []string{"", "loc-2"} {
		_, err := models.GetLocationByShopifyId(t.Context(), db, id)
		assert.True(t, utils.IsNotFound(err), "id %q", id)
	}
}
