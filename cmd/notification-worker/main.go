// notification-worker consumes notification events from RabbitMQ and sends
// the SMS messages they describe. Run it when NOTIFY_TRANSPORT=amqp.
//
// Usage:
//
//	RABBITMQ_URL=... DB_HOST=... SMS_API_BASE_URL=... go run ./cmd/notification-worker
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()

	gateway, err := notification.NewHTTPGatewayFromEnv()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "sms"}).Fatal(err.Error())
	}
	consumer := notification.NewConsumer(db, notification.NewDispatcher(db, notification.NewService(db, gateway)))

	cfg := config.LoadRabbitMQConfig()
	handle := func(ctx context.Context, body []byte) error {
		err := consumer.Handle(ctx, body)
		if errors.Is(err, notification.ErrMalformedEvent) {
			// Requeueing a message that cannot be decoded never succeeds.
			config.LogError(logger, "notification-worker", "handle", "drop malformed event", string(body), err)
			return nil
		}
		return err
	}

	for attempt := 1; ctx.Err() == nil; attempt++ {
		mq, err := config.NewRabbitMQ(cfg)
		if err != nil {
			sleep := time.Duration(min(attempt, 30)) * time.Second
			logger.WithFields(logrus.Fields{"field": "rabbitmq", "attempt": attempt}).
				Warn("connect failed; retrying in " + sleep.String() + ": " + err.Error())
			select {
			case <-ctx.Done():
			case <-time.After(sleep):
			}
			continue
		}
		attempt = 0
		logger.WithFields(logrus.Fields{"queue": cfg.NotifyQueue}).Info("notification worker consuming")
		err = mq.ConsumeQueue(ctx, cfg.NotifyQueue, handle)
		mq.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.WithFields(logrus.Fields{"field": "rabbitmq"}).Error("consumer stopped: " + err.Error())
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
