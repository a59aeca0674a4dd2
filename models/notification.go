package models

import "time"

// SmsNotificationConfig is unique per (company_id, trigger).
type SmsNotificationConfig struct {
	ID                   int                 `gorm:"primaryKey" json:"id"`
	CompanyId            string              `gorm:"size:64;not null;uniqueIndex:uniq_company_trigger,priority:1" json:"company_id"`
	Trigger              NotificationTrigger `gorm:"column:trigger_name;size:32;not null;uniqueIndex:uniq_company_trigger,priority:2" json:"trigger"`
	Template             string              `gorm:"type:text;not null" json:"template"`
	IsEnabled            bool                `gorm:"not null" json:"is_enabled"`
	SendToCustomer       bool                `gorm:"not null" json:"send_to_customer"`
	SendToRider          bool                `gorm:"not null;default:false" json:"send_to_rider"`
	AdditionalRecipients []string            `gorm:"type:text;serializer:json" json:"additional_recipients"`
	CreatedAt            time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// SmsLog keeps one row per send attempt, successful or not.
type SmsLog struct {
	ID        int                 `gorm:"primaryKey" json:"id"`
	CompanyId string              `gorm:"size:64;index;not null" json:"company_id"`
	OrderId   *int                `gorm:"index" json:"order_id"`
	Trigger   NotificationTrigger `gorm:"column:trigger_name;size:32" json:"trigger"`
	Phone     string              `gorm:"size:32;not null" json:"phone"`
	Message   string              `gorm:"type:text;not null" json:"message"`
	Success   bool                `gorm:"not null" json:"success"`
	Error     *string             `gorm:"type:text" json:"error"`
	SentById  *int                `json:"sent_by_id"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"created_at"`
}
