package shopifysync

import (
	"context"
	"errors"
	"time"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/cosmoos/cosmo_backend/workflow"
	"gorm.io/gorm"
)

// recordFailure stores the raw delivery and the failure. An unresolved row
// for the same order is updated in place rather than duplicated.
func (p *Pipeline) recordFailure(ctx context.Context, loc *models.CompanyLocation, externalOrderId, topic string, raw []byte, cause error) (int, error) {
	db := p.db.WithContext(ctx)
	now := time.Now().UTC()
	message := utils.Truncate(cause.Error(), models.FailedWebhookMessageLimit)
	stack := utils.Truncate(workflow.StackTrace(cause), models.FailedWebhookStackLimit)

	var row models.FailedOrderWebhook
	err := db.Where("company_id = ? AND company_location_id = ? AND shopify_order_id = ? AND resolved_at IS NULL",
		loc.CompanyId, loc.ID, externalOrderId).
		Order("id DESC").
		Take(&row).Error
	if err == nil {
		err = db.Model(&models.FailedOrderWebhook{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
			"topic":           topic,
			"raw_payload":     raw,
			"error_message":   message,
			"error_stack":     stack,
			"attempts":        gorm.Expr("attempts + ?", 1),
			"last_attempt_at": now,
		}).Error
		return row.ID, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	row = models.FailedOrderWebhook{
		CompanyId:         loc.CompanyId,
		CompanyLocationId: loc.ID,
		ShopifyOrderId:    externalOrderId,
		Topic:             topic,
		RawPayload:        raw,
		ErrorMessage:      message,
		ErrorStack:        stack,
		Attempts:          1,
		LastAttemptAt:     now,
	}
	if err := db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// ListFailed returns the company's unresolved ledger rows, newest first.
func (p *Pipeline) ListFailed(ctx context.Context, companyId string, limit int) ([]models.FailedOrderWebhook, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.FailedOrderWebhook
	err := p.db.WithContext(ctx).
		Where("company_id = ? AND resolved_at IS NULL", companyId).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Retry re-runs the stored payload of a ledger row. Success resolves the
// row; failure bumps its attempt count and replaces the recorded error.
func (p *Pipeline) Retry(ctx context.Context, companyId string, ledgerId int) (*Result, error) {
	db := p.db.WithContext(ctx)

	var row models.FailedOrderWebhook
	if err := db.Where("company_id = ? AND id = ?", companyId, ledgerId).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}
	if row.ResolvedAt != nil {
		return nil, ErrAlreadyResolved
	}

	var loc models.CompanyLocation
	if err := db.Where("company_id = ? AND id = ?", companyId, row.CompanyLocationId).Take(&loc).Error; err != nil {
		return nil, p.markRetryFailed(ctx, &row, err)
	}

	order, err := shopify.ParseOrder(row.RawPayload)
	if err != nil {
		return nil, p.markRetryFailed(ctx, &row, err)
	}
	res, err := p.process(ctx, &loc, order)
	if err != nil {
		return nil, p.markRetryFailed(ctx, &row, err)
	}

	now := time.Now().UTC()
	if err := db.Model(&models.FailedOrderWebhook{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"resolved_at":     now,
		"last_attempt_at": now,
		"attempts":        gorm.Expr("attempts + ?", 1),
	}).Error; err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) markRetryFailed(ctx context.Context, row *models.FailedOrderWebhook, cause error) error {
	err := p.db.WithContext(ctx).Model(&models.FailedOrderWebhook{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"error_message":   utils.Truncate(cause.Error(), models.FailedWebhookMessageLimit),
		"error_stack":     utils.Truncate(workflow.StackTrace(cause), models.FailedWebhookStackLimit),
		"attempts":        gorm.Expr("attempts + ?", 1),
		"last_attempt_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return errors.Join(&IngestionError{LedgerID: row.ID, Retryable: true, Err: cause}, err)
	}
	return &IngestionError{LedgerID: row.ID, Retryable: true, Err: cause}
}
