package shopifysync

import (
	"testing"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"github.com/cosmoos/cosmo_backend/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMerchant_StaffIdBeatsCoupon(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	u1 := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", ExternalStaffIds: []string{"88001"}})
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", CouponCodes: []string{"NIMAL10"}})

	order := &shopify.Order{SourceName: shopify.SourcePOS, StaffID: "88001", DiscountCodes: []string{"nimal10"}}
	got, err := ResolveMerchant(t.Context(), db, order, &fx.Location)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u1.ID, *got)
}

func TestResolveMerchant_WebCouponMatchIgnoresCaseAndSpace(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", CouponCodes: []string{"SUNIL5"}})
	u2 := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", CouponCodes: []string{" Nimal10 "}})

	order := &shopify.Order{SourceName: shopify.SourceWeb, DiscountCodes: []string{"NIMAL10"}}
	got, err := ResolveMerchant(t.Context(), db, order, &fx.Location)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u2.ID, *got)
}

func TestResolveMerchant_SharedCouponFallsBackToDefault(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	def := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1"})
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", CouponCodes: []string{"SHARED"}})
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", CouponCodes: []string{"shared"}})
	fx.Location.DefaultMerchantId = &def.ID

	order := &shopify.Order{SourceName: shopify.SourceWeb, DiscountCodes: []string{"SHARED"}}
	got, err := ResolveMerchant(t.Context(), db, order, &fx.Location)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, def.ID, *got)
}

func TestResolveMerchant_FallbacksAndScope(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	testutil.SeedCompany(t, db, "c2", "loc-2")
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c2", ExternalStaffIds: []string{"88001"}, CouponCodes: []string{"X"}})

	// Another company's staff never matches.
	got, err := ResolveMerchant(t.Context(), db, &shopify.Order{SourceName: shopify.SourcePOS, StaffID: "88001"}, &fx.Location)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Coupons only count for web orders.
	u := testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", CouponCodes: []string{"X"}})
	got, err = ResolveMerchant(t.Context(), db, &shopify.Order{SourceName: shopify.SourcePOS, DiscountCodes: []string{"X"}}, &fx.Location)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Inactive users are skipped.
	require.NoError(t, db.Model(&models.CompanyUser{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	got, err = ResolveMerchant(t.Context(), db, &shopify.Order{SourceName: shopify.SourceWeb, DiscountCodes: []string{"X"}}, &fx.Location)
	require.NoError(t, err)
	assert.Nil(t, got)
}
