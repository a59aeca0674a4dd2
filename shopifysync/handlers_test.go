package shopifysync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/shopify"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebhookRouter(p *Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/shopify/orders", WebhookHandler(p))
	staff := r.Group("/api", func(c *gin.Context) {
		c.Request = c.Request.WithContext(utils.SetCompanyIdInContext(c.Request.Context(), c.GetHeader("X-Test-Company")))
	})
	staff.GET("/webhooks/failed", ListFailedHandler(p))
	staff.POST("/webhooks/failed/:id/retry", RetryHandler(p))
	return r
}

func postWebhook(r http.Handler, location string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/orders?location_id="+location, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shopify.HeaderTopic, "orders/create")
	if signature != "" {
		req.Header.Set(shopify.HeaderHmac, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_StatusCodes(t *testing.T) {
	f := newPipelineFixture(t)
	r := newWebhookRouter(f.p)
	body := payload("4500.00")

	w := postWebhook(r, "loc-1", body, shopify.Sign(body, "secret-a"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ok struct {
		OK      bool `json:"ok"`
		Created bool `json:"created"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.True(t, ok.OK)
	assert.True(t, ok.Created)

	w = postWebhook(r, "loc-1", body, shopify.Sign(body, "secret-a"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, count(t, f.db, &models.Order{}))

	w = postWebhook(r, "loc-1", body, shopify.Sign(body, "wrong"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, "loc-1", body, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWebhook(r, "nowhere", body, shopify.Sign(body, "secret-a"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	bad := []byte(`{"id":5,"total_price":"1","line_items":[{"id":1,"variant_id":2,"quantity":1}]}`)
	w = postWebhook(r, "loc-1", bad, shopify.Sign(bad, "secret-a"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var ve struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ve))
	assert.Equal(t, "is required", ve.Fields["line_items[0].price"])
	assert.Zero(t, count(t, f.db, &models.FailedOrderWebhook{}))
}

func TestWebhookHandler_TenantWithoutSecretsIsRejected(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.db.Model(&models.Company{}).Where("id = ?", "c1").
		Update("shopify_webhook_secrets", "[]").Error)
	r := newWebhookRouter(f.p)
	body := payload("1.00")

	w := postWebhook(r, "loc-1", body, shopify.Sign(body, "secret-a"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
	assert.Zero(t, count(t, f.db, &models.Order{}))
}

func TestRetryHandler(t *testing.T) {
	f := newPipelineFixture(t)
	r := newWebhookRouter(f.p)
	row := models.FailedOrderWebhook{
		CompanyId:         "c1",
		CompanyLocationId: f.fx.Location.ID,
		ShopifyOrderId:    "820982911946154500",
		RawPayload:        payload("4500.00"),
		Attempts:          1,
	}
	require.NoError(t, f.db.Create(&row).Error)

	do := func(method, path, company string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Test-Company", company)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/webhooks/failed", "c1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shopify_order_id":"820982911946154500"`)
	assert.NotContains(t, w.Body.String(), "raw_payload")

	retryPath := fmt.Sprintf("/api/webhooks/failed/%d/retry", row.ID)
	w = do(http.MethodPost, "/api/webhooks/failed/abc/retry", "c1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, retryPath, "c2")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodPost, retryPath, "c1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodPost, retryPath, "c1")
	assert.Equal(t, http.StatusConflict, w.Code)
}
