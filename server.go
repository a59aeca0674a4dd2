package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cosmoos/cosmo_backend/analytics"
	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/fulfillment"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/shopifysync"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	logger := config.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen before dependencies are up so startup health checks pass. Until
	// the router is ready only /healthz answers.
	var app atomic.Pointer[gin.Engine]
	srv := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine := app.Load(); engine != nil {
				engine.ServeHTTP(w, r)
				return
			}
			if r.URL.Path == "/healthz" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry(sigCtx)

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can hold table locks; large deployments run it as a job.
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	var gateway notification.Gateway
	if gw, err := notification.NewHTTPGatewayFromEnv(); err != nil {
		config.LogWarn(logger, "server.go", "main", "sms gateway disabled", logrus.Fields{"reason": err.Error()})
	} else {
		gateway = gw
	}
	dispatcher := notification.NewDispatcher(db, notification.NewService(db, gateway))

	publisher, closePublisher, err := notification.NewPublisherFromEnv(dispatcher)
	if err != nil {
		config.LogError(logger, "server.go", "main", "notification transport unavailable; dispatching inline", config.NotifyTransport(), err)
		publisher, closePublisher = notification.InlinePublisher{Dispatcher: dispatcher}, func() {}
	}
	defer closePublisher()

	sink, closeSink := analytics.NewSinkFromEnv(sigCtx)
	defer closeSink()

	app.Store(newRouter(logger, routes{
		pipeline: shopifysync.NewPipeline(db, publisher),
		orders:   fulfillment.NewService(db, publisher, sink),
		consumer: notification.NewConsumer(db, dispatcher),
	}))
	logger.WithFields(logrus.Fields{"port": port, "transport": config.NotifyTransport()}).Info("server ready")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
