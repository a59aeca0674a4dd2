package models

import (
	"gorm.io/gorm"
)

func AllModels() []interface{} {
	return []interface{}{
		&Company{}, &CompanyLocation{}, &CompanyUser{},
		&Customer{},
		&Vendor{}, &Category{}, &ProductItem{},
		&Order{}, &OrderLineItem{}, &OrderRemark{},
		&FailedOrderWebhook{},
		&SmsNotificationConfig{}, &SmsLog{},
		&IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
