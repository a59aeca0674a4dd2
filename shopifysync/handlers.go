package shopifysync

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MaxWebhookBytes bounds the body read from Shopify.
const MaxWebhookBytes = 2 << 20

// WebhookHandler receives Shopify order webhooks for the location named by
// the location_id query parameter.
func WebhookHandler(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		ctx := c.Request.Context()
		loc, err := models.GetLocationByShopifyId(ctx, p.db, c.Query("location_id"))
		if err != nil {
			if utils.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown location"})
				return
			}
			config.LogError(p.logger, "shopifysync", "WebhookHandler", "resolve location", c.Query("location_id"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		ctx = utils.SetCompanyIdInContext(ctx, loc.CompanyId)

		company, err := models.GetCompany(ctx, p.db, loc.CompanyId)
		if err != nil {
			if utils.IsNotFound(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown location"})
				return
			}
			config.LogError(p.logger, "shopifysync", "WebhookHandler", "load company", loc.CompanyId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := shopify.VerifyWebhook(body, c.GetHeader(shopify.HeaderHmac), company.ShopifyWebhookSecrets); err != nil {
			if errors.Is(err, shopify.ErrNoWebhookSecrets) {
				config.LogError(p.logger, "shopifysync", "WebhookHandler", "no webhook secrets configured", loc.CompanyId, err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "webhook verification not configured"})
				return
			}
			config.LogWarn(p.logger, "shopifysync", "WebhookHandler", "rejected webhook signature", logrus.Fields{
				"company_id": loc.CompanyId,
				"reason":     err.Error(),
				"shop":       c.GetHeader(shopify.HeaderDomain),
			})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		topic := strings.TrimSpace(c.GetHeader(shopify.HeaderTopic))
		if topic != "" && !strings.HasPrefix(topic, "orders/") {
			c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": topic})
			return
		}

		res, err := p.Ingest(ctx, loc, body, topic)
		if err != nil {
			var ve *shopify.ValidationError
			if errors.As(err, &ve) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload", "fields": ve.Fields})
				return
			}
			var ie *IngestionError
			if errors.As(err, &ie) {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":     ie.Err.Error(),
					"ledger_id": ie.LedgerID,
					"retryable": ie.Retryable,
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "order_id": res.Order.ID, "created": res.Created})
	}
}

// ListFailedHandler lists unresolved ledger rows for the caller's company.
func ListFailedHandler(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, ok := utils.GetCompanyIdFromContext(c.Request.Context())
		if !ok || companyId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		rows, err := p.ListFailed(c.Request.Context(), companyId, limit)
		if err != nil {
			config.LogError(p.logger, "shopifysync", "ListFailedHandler", "list", companyId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

// RetryHandler re-runs one ledger row.
func RetryHandler(p *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, ok := utils.GetCompanyIdFromContext(c.Request.Context())
		if !ok || companyId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		res, err := p.Retry(c.Request.Context(), companyId, id)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"ok": true, "order_id": res.Order.ID, "created": res.Created})
		case errors.Is(err, ErrLedgerNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrAlreadyResolved):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			var ie *IngestionError
			if errors.As(err, &ie) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": ie.Err.Error(), "ledger_id": ie.LedgerID, "retryable": ie.Retryable})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}
