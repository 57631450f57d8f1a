// Package events fans order changes out to interested listeners. Publishing
// never blocks or fails the caller.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	OrderPlaced         Type = "order.placed"
	OrderStatusChanged  Type = "order.status_changed"
	OrderCancelled      Type = "order.cancelled"
	OrderPaymentUpdated Type = "order.payment_updated"
)

type Event struct {
	Type          Type      `json:"type"`
	OrderID       int64     `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	At            time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON events on a Redis pub/sub channel from a
// background goroutine, bounded by timeout.
type RedisPublisher struct {
	client  redisPublisher
	channel string
	timeout time.Duration
	logger  logrus.FieldLogger
	wg      sync.WaitGroup
}

func NewRedisPublisher(client redisPublisher, channel string, logger logrus.FieldLogger) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (p *RedisPublisher) Publish(_ context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).WithField("type", event.Type).Error("marshal event")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"type":         event.Type,
				"order_number": event.OrderNumber,
				"channel":      p.channel,
			}).Warn("publish order event failed")
			return
		}

		p.logger.WithFields(logrus.Fields{
			"type":         event.Type,
			"order_number": event.OrderNumber,
		}).Debug("order event published")
	}()
}

// Close waits for in-flight publishes.
func (p *RedisPublisher) Close() {
	p.wg.Wait()
}
