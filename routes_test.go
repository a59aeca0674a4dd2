package main

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/cosmoos/cosmo_backend/analytics"
	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/fulfillment"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/shopifysync"
	"github.com/cosmoos/cosmo_backend/testutil"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Wiring(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	fx := testutil.SeedCompany(t, db, "c1", "loc-1")
	order := models.Order{CompanyId: "c1", ShopifyOrderId: "1", CompanyLocationId: fx.Location.ID, FulfillmentStage: models.StageSampleFreeIssue}
	require.NoError(t, db.Create(&order).Error)

	dispatcher := notification.NewDispatcher(db, notification.NewService(db, nil))
	publisher := notification.SyncPublisher{Dispatcher: dispatcher}
	r := newRouter(config.GetLogger(), routes{
		pipeline: shopifysync.NewPipeline(db, publisher),
		orders:   fulfillment.NewService(db, publisher, analytics.NopSink{}),
		consumer: notification.NewConsumer(db, dispatcher),
	})

	bearer := func(perms ...string) string {
		tok, err := utils.JwtGenerate(utils.JwtCustomClaim{UserId: 5, CompanyId: "c1", Permissions: perms}, time.Hour)
		require.NoError(t, err)
		return "Bearer " + tok
	}
	call := func(method, path, auth string) int {
		req := httptest.NewRequest(method, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	printPath := "/api/orders/" + strconv.Itoa(order.ID) + "/print"
	assert.Equal(t, http.StatusNoContent, call(http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/nope", ""))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodPost, printPath, ""))
	assert.Equal(t, http.StatusForbidden, call(http.MethodPost, printPath, bearer("orders.hold")))
	assert.Equal(t, http.StatusOK, call(http.MethodPost, printPath, bearer("orders.print")))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/orders/"+strconv.Itoa(order.ID), bearer()))
	assert.Equal(t, http.StatusForbidden, call(http.MethodGet, "/api/webhooks/failed", bearer()))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/api/webhooks/failed", bearer("webhooks.read")))
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/public/delivery/short", ""))

	var stored models.Order
	require.NoError(t, db.Where("id = ?", order.ID).Take(&stored).Error)
	assert.Equal(t, models.StagePrint, stored.FulfillmentStage)
}
