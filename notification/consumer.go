package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const HandlerDispatch = "notification.dispatch"

// Consumer applies queued events exactly once per event id.
type Consumer struct {
	db         *gorm.DB
	dispatcher *Dispatcher
}

func NewConsumer(db *gorm.DB, d *Dispatcher) *Consumer {
	return &Consumer{db: db, dispatcher: d}
}

var ErrMalformedEvent = errors.New("malformed notification event")

// Handle decodes one queued event and dispatches it unless an earlier
// delivery already did. Returned errors ask the broker to redeliver.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Join(ErrMalformedEvent, err)
	}
	if ev.EventID == "" || ev.CompanyID == "" || !ev.Trigger.IsValid() {
		return ErrMalformedEvent
	}
	_, err := workflow.RunOnce(c.db.WithContext(ctx), ev.CompanyID, HandlerDispatch, ev.EventID, func() error {
		c.dispatcher.Dispatch(ctx, ev)
		return nil
	})
	return err
}

// PubSubPushHandler consumes the push subscription for the notification
// topic. Malformed messages are acknowledged so they are not redelivered
// forever; transient failures answer 500 so Pub/Sub retries.
func PubSubPushHandler(consumer *Consumer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.BoolFromEnv("ENABLE_NOTIFY_PUSH_ENDPOINT", true) {
			c.Status(http.StatusNoContent)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		var envelope config.PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		err = consumer.Handle(c.Request.Context(), envelope.Message.Data)
		switch {
		case err == nil:
			c.Status(http.StatusNoContent)
		case errors.Is(err, ErrMalformedEvent):
			config.LogError(config.GetLogger(), "notification", "PubSubPushHandler", "decode event", envelope.Message.ID, err)
			c.Status(http.StatusNoContent)
		default:
			config.LogError(config.GetLogger(), "notification", "PubSubPushHandler", "handle event", envelope.Message.ID, err)
			c.Status(http.StatusInternalServerError)
		}
	}
}
