package main

import (
	"net/http"
	"strings"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/fulfillment"
	"github.com/cosmoos/cosmo_backend/middlewares"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/shopifysync"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	permSampleFreeIssue  = "orders.sample_free_issue"
	permPrint            = "orders.print"
	permReadyToDispatch  = "orders.ready_to_dispatch"
	permHold             = "orders.hold"
	permDispatch         = "orders.dispatch"
	permDeliveryComplete = "orders.delivery_complete"
	permInvoiceComplete  = "orders.invoice_complete"
	permRemark           = "orders.remark"
	permResendRiderSms   = "orders.resend_rider_sms"
	permWebhooksRead     = "webhooks.read"
	permWebhooksRetry    = "webhooks.retry"
)

type routes struct {
	pipeline *shopifysync.Pipeline
	orders   *fulfillment.Service
	consumer *notification.Consumer
}

func newRouter(logger *logrus.Logger, rt routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.CorrelationId())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(cors.New(corsConfig()))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.POST("/webhooks/shopify/orders",
		middlewares.NewRateLimiterFromEnv("webhooks").Middleware(),
		shopifysync.WebhookHandler(rt.pipeline))
	r.POST("/pubsub/notifications", notification.PubSubPushHandler(rt.consumer))

	public := r.Group("/public", middlewares.NewRateLimiterFromEnv("public").Middleware())
	public.GET("/delivery/:token", rt.orders.DeliveryStatusHandler())
	public.POST("/delivery/:token", rt.orders.ConfirmDeliveryHandler())

	api := r.Group("/api", middlewares.AuthMiddleware())
	api.GET("/webhooks/failed", middlewares.RequirePermission(permWebhooksRead), shopifysync.ListFailedHandler(rt.pipeline))
	api.POST("/webhooks/failed/:id/retry", middlewares.RequirePermission(permWebhooksRetry), shopifysync.RetryHandler(rt.pipeline))

	orders := api.Group("/orders/:id")
	orders.GET("", rt.orders.GetOrderHandler())
	orders.POST("/sample-free-issue", middlewares.RequirePermission(permSampleFreeIssue), rt.orders.SampleFreeIssueHandler())
	orders.POST("/print", middlewares.RequirePermission(permPrint), rt.orders.PrintHandler())
	orders.POST("/ready-to-dispatch", middlewares.RequirePermission(permReadyToDispatch), rt.orders.ReadyToDispatchHandler())
	orders.POST("/hold", middlewares.RequirePermission(permHold), rt.orders.HoldHandler())
	orders.POST("/revert-hold", middlewares.RequirePermission(permHold), rt.orders.RevertHoldHandler())
	orders.POST("/dispatch", middlewares.RequirePermission(permDispatch), rt.orders.DispatchHandler())
	orders.POST("/delivery-complete", middlewares.RequirePermission(permDeliveryComplete), rt.orders.DeliveryCompleteHandler())
	orders.POST("/invoice-complete", middlewares.RequirePermission(permInvoiceComplete), rt.orders.InvoiceCompleteHandler())
	orders.POST("/resend-rider-sms", middlewares.RequirePermission(permResendRiderSms), rt.orders.ResendRiderSmsHandler())
	orders.POST("/remarks", middlewares.RequirePermission(permRemark), rt.orders.AddRemarkHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// corsConfig allows every origin outside production. In production only
// CORS_ALLOWED_ORIGINS is allowed, and nothing when it is unset.
func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if config.IsProduction() {
		cfg.AllowOrigins = splitAndTrim(config.StringFromEnv("CORS_ALLOWED_ORIGINS", ""))
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.HeaderCorrelationId)
	cfg.AddExposeHeaders("Content-Length", middlewares.HeaderCorrelationId)
	return cfg
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
