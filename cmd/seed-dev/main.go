// seed-dev creates a development company with one Shopify location, a staff
// admin, a rider and enabled SMS templates for every trigger, then prints a
// staff token for calling /api.
//
// Usage (from the repository root):
//
//	DB_HOST=... DB_NAME=... SHOPIFY_LOCATION_ID=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var templates = map[models.NotificationTrigger]string{
	models.TriggerOrderReceived:    "Hi {customerName}, we received order {orderName} ({currency} {totalPrice}).",
	models.TriggerPackageReady:     "Your order {orderName} is packed and ready to go.",
	models.TriggerDispatched:       "Order {orderName} is on its way. {courierName} {trackingNumber}",
	models.TriggerRiderDispatched:  "New delivery {orderName} for {customerName}. Confirm here: {deliveryLink}",
	models.TriggerDeliveryComplete: "Order {orderName} was delivered. Thank you!",
}

func main() {
	companyId := config.StringFromEnv("SEED_COMPANY_ID", "dev-company")
	locationId := config.StringFromEnv("SHOPIFY_LOCATION_ID", "dev-location")
	secret := config.StringFromEnv("SHOPIFY_WEBHOOK_SECRET", uuid.NewString())

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fail("migrate", err)
	}
	ctx := utils.SetSkipTenantScopeInContext(context.Background(), true)

	var adminId int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company := models.Company{ID: companyId, Name: "Cosmo Dev", ShopifyWebhookSecrets: []string{secret}}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&company).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", companyId).Take(&company).Error; err != nil {
			return err
		}
		if len(company.ShopifyWebhookSecrets) > 0 {
			secret = company.ShopifyWebhookSecrets[0]
		}

		admin := models.CompanyUser{CompanyId: companyId, Name: "Dev Admin", Email: "admin@cosmo.dev"}
		if err := tx.Where(&admin).Attrs(models.CompanyUser{IsActive: true, Phone: "0770000000"}).FirstOrCreate(&admin).Error; err != nil {
			return err
		}
		adminId = admin.ID

		rider := models.CompanyUser{CompanyId: companyId, Name: "Dev Rider", IsRider: true}
		if err := tx.Where(&rider).Attrs(models.CompanyUser{IsActive: true, Phone: "0711111111"}).FirstOrCreate(&rider).Error; err != nil {
			return err
		}

		loc := models.CompanyLocation{ShopifyLocationId: locationId}
		if err := tx.Where(&loc).Attrs(models.CompanyLocation{
			CompanyId:         companyId,
			Name:              "Dev store",
			DefaultMerchantId: &admin.ID,
		}).FirstOrCreate(&loc).Error; err != nil {
			return err
		}

		for trigger, body := range templates {
			cfg := models.SmsNotificationConfig{CompanyId: companyId, Trigger: trigger}
			if err := tx.Where(&cfg).Attrs(models.SmsNotificationConfig{
				Template:       body,
				IsEnabled:      true,
				SendToCustomer: trigger != models.TriggerRiderDispatched,
				SendToRider:    trigger == models.TriggerRiderDispatched,
			}).FirstOrCreate(&cfg).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		fail("seed", err)
	}

	token, err := utils.JwtGenerate(utils.JwtCustomClaim{
		UserId:      adminId,
		CompanyId:   companyId,
		Name:        "Dev Admin",
		Permissions: []string{"*"},
	}, 24*time.Hour)
	if err != nil {
		fail("sign token", err)
	}
	fmt.Printf("company=%s location=%s webhook_secret=%s\n", companyId, locationId, secret)
	fmt.Printf("staff token (24h): %s\n", token)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
