// Package notification renders per-company SMS templates for order events
// and delivers them best-effort through an SMS gateway.
package notification

import (
	"context"
	"errors"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SendResult is the outcome of one send. Message is set on failure.
type SendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

var ErrInvalidPhone = errors.New("invalid phone number")

// Service sends single messages and records each attempt in sms_logs.
type Service struct {
	db      *gorm.DB
	gateway Gateway
	logger  *logrus.Logger
}

func NewService(db *gorm.DB, gateway Gateway) *Service {
	return &Service{db: db, gateway: gateway, logger: config.GetLogger()}
}

// SendSms normalizes and validates phone, hands the message to the gateway
// and logs the attempt. It never returns an error; failures are reported
// in the result.
func (s *Service) SendSms(ctx context.Context, companyID, phone, message string, sentByID *int) SendResult {
	return s.send(ctx, models.SmsLog{
		CompanyId: companyID,
		Phone:     phone,
		Message:   message,
		SentById:  sentByID,
	})
}

func (s *Service) send(ctx context.Context, entry models.SmsLog) SendResult {
	normalized := NormalizePhone(entry.Phone)
	entry.Phone = normalized

	var sendErr error
	switch {
	case !ValidPhone(normalized):
		sendErr = ErrInvalidPhone
	case s.gateway == nil:
		sendErr = errors.New("sms gateway not configured")
	default:
		sendErr = s.gateway.Send(ctx, normalized, entry.Message)
	}

	entry.Success = sendErr == nil
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Error = &msg
	}
	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			config.LogError(s.logger, "notification", "send", "create sms log", entry.Phone, err)
		}
	}

	if sendErr != nil {
		config.LogError(s.logger, "notification", "send", "gateway send", logrus.Fields{
			"company_id": entry.CompanyId,
			"trigger":    entry.Trigger,
			"phone":      normalized,
		}, sendErr)
		return SendResult{Success: false, Message: sendErr.Error()}
	}
	return SendResult{Success: true}
}
