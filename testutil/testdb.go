// Package testutil opens throwaway SQLite databases with the production
// gorm configuration and schema, for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDB returns a migrated database backed by a file in t.TempDir().
// A single connection keeps SQLite writes serialized.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cosmo_test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	config.InstallPlugins(db)
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a company with one location, ready to receive orders.
type Fixture struct {
	Company  models.Company
	Location models.CompanyLocation
}

func SeedCompany(t testing.TB, db *gorm.DB, companyId string, shopifyLocationId string, secrets ...string) Fixture {
	t.Helper()

	company := models.Company{ID: companyId, Name: "Company " + companyId, ShopifyWebhookSecrets: secrets}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("seed company: %v", err)
	}
	loc := models.CompanyLocation{
		CompanyId:         companyId,
		Name:              "Main store",
		ShopifyLocationId: shopifyLocationId,
	}
	if err := db.Create(&loc).Error; err != nil {
		t.Fatalf("seed location: %v", err)
	}
	return Fixture{Company: company, Location: loc}
}

func SeedUser(t testing.TB, db *gorm.DB, user models.CompanyUser) models.CompanyUser {
	t.Helper()

	user.IsActive = true
	if user.Name == "" {
		user.Name = "User"
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}
