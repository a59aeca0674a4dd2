package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/sirupsen/logrus"
)

// Publisher hands an event off once the owning transaction has committed.
// Implementations must not block the caller on SMS delivery.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// InlineTimeout caps a detached in-process dispatch.
var InlineTimeout = 5 * time.Second

// InlinePublisher dispatches in a detached goroutine bounded by
// InlineTimeout.
type InlinePublisher struct {
	Dispatcher *Dispatcher
}

func (p InlinePublisher) Publish(ctx context.Context, ev Event) error {
	go func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), InlineTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				config.LogError(config.GetLogger(), "notification", "InlinePublisher", "dispatch panic", ev, fmt.Errorf("%v", r))
			}
		}()
		p.Dispatcher.Dispatch(dctx, ev)
	}()
	return nil
}

// SyncPublisher dispatches on the caller's goroutine.
type SyncPublisher struct {
	Dispatcher *Dispatcher
}

func (p SyncPublisher) Publish(ctx context.Context, ev Event) error {
	p.Dispatcher.Dispatch(ctx, ev)
	return nil
}

// PubSubPublisher sends events to a Pub/Sub topic consumed by the push
// endpoint.
type PubSubPublisher struct {
	Topic string
}

func (p PubSubPublisher) Publish(ctx context.Context, ev Event) error {
	_, err := config.PublishJSON(ctx, p.Topic, ev, map[string]string{
		"company_id": ev.CompanyID,
		"trigger":    string(ev.Trigger),
		"event_id":   ev.EventID,
	})
	return err
}

// AMQPPublisher sends events to a RabbitMQ queue consumed by the
// notification worker.
type AMQPPublisher struct {
	MQ    *config.RabbitMQ
	Queue string
}

func (p AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.MQ.Publish(ctx, p.Queue, ev.EventID, body)
}

// NewPublisherFromEnv picks the transport named by NOTIFY_TRANSPORT. The
// returned close func releases broker connections.
func NewPublisherFromEnv(d *Dispatcher) (Publisher, func(), error) {
	switch config.NotifyTransport() {
	case config.NotifyTransportPubSub:
		return PubSubPublisher{Topic: config.StringFromEnv("NOTIFY_TOPIC", "cosmo-notifications")}, func() {}, nil
	case config.NotifyTransportAMQP:
		cfg := config.LoadRabbitMQConfig()
		mq, err := config.NewRabbitMQ(cfg)
		if err != nil {
			return nil, nil, err
		}
		return AMQPPublisher{MQ: mq, Queue: cfg.NotifyQueue}, mq.Close, nil
	default:
		return InlinePublisher{Dispatcher: d}, func() {}, nil
	}
}

// PublishAfterCommit publishes and logs a failure instead of returning it;
// the state change that produced ev has already been committed.
func PublishAfterCommit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		config.LogError(config.GetLogger(), "notification", "PublishAfterCommit", "publish", logrus.Fields{
			"company_id": ev.CompanyID,
			"order_id":   ev.OrderID,
			"trigger":    ev.Trigger,
		}, err)
	}
}
