package outbox

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
)

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message any) (int64, error)
	EventChannel(eventType string) string
}

// RedisPublisher fans outbox events out on per-event-type redis channels.
type RedisPublisher struct {
	client channelPublisher
}

func NewRedisPublisher(client channelPublisher) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event models.OutboxEvent, envelope PayloadEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = p.client.Publish(ctx, p.client.EventChannel(string(event.EventType)), string(body))
	return err
}
