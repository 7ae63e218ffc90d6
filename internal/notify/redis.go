package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "notify:user:"

// RedisNotifier publishes envelopes to per-user redis channels and
// bridges subscribed messages back into the local hub, so instances
// behind a load balancer all reach their connected users.
type RedisNotifier struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRedisNotifier wires a redis client in front of the hub.
func NewRedisNotifier(client *redis.Client, hub *Hub, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, hub: hub, logger: logger}
}

// Emit publishes to the user's redis channel. When redis is not
// configured, delivery falls back to the local hub only.
func (n *RedisNotifier) Emit(ctx context.Context, userID, event string, payload any) error {
	if n.client == nil {
		return n.hub.Emit(ctx, userID, event, payload)
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, channelPrefix+userID, data).Err()
}

// Run subscribes to all user channels and forwards messages into the
// local hub until ctx is cancelled. Intended to run in its own goroutine.
func (n *RedisNotifier) Run(ctx context.Context) {
	if n.client == nil {
		return
	}
	pubsub := n.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			userID := strings.TrimPrefix(msg.Channel, channelPrefix)
			var envelope Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				n.logger.Warn("malformed notify payload", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = n.hub.Emit(ctx, userID, envelope.Event, envelope.Payload)
		}
	}
}
