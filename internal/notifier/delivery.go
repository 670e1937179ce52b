package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/CristianMorenoC/prueba-tecnica/internal/repository"
)

// Outbound delivery topics. A downstream delivery service consumes these
// and talks to the actual email/SMS providers.
const (
	TopicEmail = "notifications.email"
	TopicSMS   = "notifications.sms"
)

type outboundMessage struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body"`
}

// DeliveryClient implements Sender on top of the message bus, with the
// contact registry kept in Redis.
type DeliveryClient struct {
	bus repository.MessageBus
	rdb *redis.Client
}

func NewDeliveryClient(bus repository.MessageBus, rdb *redis.Client) *DeliveryClient {
	return &DeliveryClient{bus: bus, rdb: rdb}
}

var _ Sender = (*DeliveryClient)(nil)

func (c *DeliveryClient) SendEmail(ctx context.Context, recipient, subject, body string) error {
	return c.publish(TopicEmail, outboundMessage{Recipient: recipient, Subject: subject, Body: body})
}

func (c *DeliveryClient) SendSMS(ctx context.Context, recipient, body string) error {
	return c.publish(TopicSMS, outboundMessage{Recipient: recipient, Body: body})
}

func (c *DeliveryClient) publish(topic string, msg outboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	if err := c.bus.Publish(topic, data); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// RegisterContact records the address under the filter key, once. Repeated
// registrations of the same address return the original registration id.
func (c *DeliveryClient) RegisterContact(ctx context.Context, address, filterKey string) (string, error) {
	seq, err := c.rdb.Incr(ctx, "contacts:seq").Result()
	if err != nil {
		return "", fmt.Errorf("contact seq: %w", err)
	}
	id := fmt.Sprintf("reg-%d", seq)

	set, err := c.rdb.HSetNX(ctx, "contacts:"+filterKey, address, id).Result()
	if err != nil {
		return "", fmt.Errorf("register contact: %w", err)
	}
	if !set {
		existing, err := c.rdb.HGet(ctx, "contacts:"+filterKey, address).Result()
		if err != nil {
			return "", fmt.Errorf("lookup contact: %w", err)
		}
		return existing, nil
	}
	return id, nil
}
