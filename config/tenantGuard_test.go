package config_test

import (
	"testing"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/testutil"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantGuard_ScopesToContextCompany(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedCompany(t, db, "c1", "loc-1")
	testutil.SeedCompany(t, db, "c2", "loc-2")
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c1", Name: "A"})
	testutil.SeedUser(t, db, models.CompanyUser{CompanyId: "c2", Name: "B"})

	var users []models.CompanyUser
	ctx := utils.SetCompanyIdInContext(t.Context(), "c1")
	require.NoError(t, db.WithContext(ctx).Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "c1", users[0].CompanyId)

	// An explicit filter is left alone.
	require.NoError(t, db.WithContext(ctx).Where("company_id = ?", "c2").Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "c2", users[0].CompanyId)

	require.NoError(t, db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).Find(&users).Error)
	assert.Len(t, users, 2)
	require.NoError(t, db.WithContext(utils.SetIsAdminInContext(ctx, true)).Find(&users).Error)
	assert.Len(t, users, 2)

	res := db.WithContext(ctx).Model(&models.CompanyUser{}).Where("name <> ?", "").Update("name", "Renamed")
	require.NoError(t, res.Error)
	assert.EqualValues(t, 1, res.RowsAffected)

	var c2 models.CompanyUser
	require.NoError(t, db.Where("company_id = ?", "c2").Take(&c2).Error)
	assert.Equal(t, "B", c2.Name)

	res = db.WithContext(ctx).Where("1 = 1").Delete(&models.CompanyUser{})
	require.NoError(t, res.Error)
	assert.EqualValues(t, 1, res.RowsAffected)
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "c2", users[0].CompanyId)
}
