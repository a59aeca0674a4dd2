package workflow

import (
	"errors"
	"time"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/utils"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// StaleAfter is how long a STARTED key blocks redelivery before another
// worker may take it over.
var StaleAfter = 5 * time.Minute

// BeginIdempotency inserts STARTED. If SUCCEEDED exists, returns (true, nil) meaning "skip safely".
func BeginIdempotency(tx *gorm.DB, companyId, handlerName, messageId string) (skip bool, err error) {
	key := models.IdempotencyKey{
		CompanyId:   companyId,
		HandlerName: handlerName,
		MessageId:   messageId,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil
	} else if !utils.IsDuplicateKeyErr(err) {
		return false, err
	}

	var existing models.IdempotencyKey
	if err := tx.Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, handlerName, messageId).
		First(&existing).Error; err != nil {
		return false, err
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		// Another worker is probably on it; ask the broker to redeliver later.
		if time.Since(existing.UpdatedAt) < StaleAfter {
			return false, ErrIdempotencyInProgress
		}
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkIdempotencySucceeded(tx *gorm.DB, companyId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, companyId, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = utils.Truncate(err.Error(), models.FailedWebhookMessageLimit)
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}

// RunOnce executes fn at most once per (company, handler, message). A
// redelivered message that already succeeded is skipped and returns nil.
// fn runs outside the idempotency bookkeeping so its own transaction can
// use the connection freely.
func RunOnce(db *gorm.DB, companyId, handlerName, messageId string, fn func() error) (skipped bool, err error) {
	skip, err := BeginIdempotency(db, companyId, handlerName, messageId)
	if err != nil {
		return false, err
	}
	if skip {
		return true, nil
	}
	if runErr := fn(); runErr != nil {
		if markErr := MarkIdempotencyFailed(db, companyId, handlerName, messageId, runErr); markErr != nil {
			return false, errors.Join(runErr, markErr)
		}
		return false, runErr
	}
	return false, MarkIdempotencySucceeded(db, companyId, handlerName, messageId)
}
