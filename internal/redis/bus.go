package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userChannelPrefix = "notifications:user:"

// DeliverFunc hands a notification to the connections of userID on this instance
type DeliverFunc func(userID string, payload []byte)

// NotificationBus fans user notifications out to every server instance
// through Redis pub/sub, so a user is reached whichever instance holds its sockets.
type NotificationBus struct {
	rdb *redis.Client
}

func NewNotificationBus(c *Client) *NotificationBus {
	return &NotificationBus{rdb: c.rdb}
}

// Publish sends payload to the private channel of userID on every instance.
func (b *NotificationBus) Publish(ctx context.Context, userID string, payload []byte) error {
	if err := b.rdb.Publish(ctx, userChannelPrefix+userID, payload).Err(); err != nil {
		return fmt.Errorf("publish notification for user %s: %w", userID, err)
	}
	return nil
}

// Subscription receives notifications for all users
type Subscription struct {
	pubsub *redis.PubSub
}

// Subscribe listens on all user channels and waits until Redis confirms the subscription.
func (b *NotificationBus) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := b.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe to notifications: %w", err)
	}
	return &Subscription{pubsub: pubsub}, nil
}

// Run delivers messages until ctx is cancelled or the subscription is closed.
func (s *Subscription) Run(ctx context.Context, deliver DeliverFunc) {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID := strings.TrimPrefix(msg.Channel, userChannelPrefix)
			if userID == "" {
				log.Warn().Str("channel", msg.Channel).Msg("notification without user id")
				continue
			}
			deliver(userID, []byte(msg.Payload))
		}
	}
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
