package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const paidChannelPrefix = "payments:paid:"

// RedisNotifier fans out "session paid" signals over Redis pub/sub. The
// claim engine publishes after fulfillment; the SSE endpoint subscribes per
// session. Delivery is best-effort: the polling fallback covers dropped
// messages, so nothing here retries.
type RedisNotifier struct {
	rc *redis.Client
}

func NewRedisNotifier(rc *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		rc: rc,
	}
}

func (n *RedisNotifier) Close() error {
	return n.rc.Close()
}

func (n *RedisNotifier) PublishPaid(ctx context.Context, sessionID string) error {
	if err := n.rc.Publish(ctx, paidChannelPrefix+sessionID, sessionID).Err(); err != nil {
		return fmt.Errorf("publishing paid signal for session %s: %w", sessionID, err)
	}
	return nil
}

// SubscribePaid returns a channel that yields the session id when its paid
// signal arrives. The returned cancel func tears the subscription down; it
// is safe to call more than once.
func (n *RedisNotifier) SubscribePaid(ctx context.Context, sessionID string) (<-chan string, func(), error) {
	pubsub := n.rc.Subscribe(ctx, paidChannelPrefix+sessionID)

	// Receive forces the SUBSCRIBE round trip so a publish immediately after
	// this call is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribing to paid signal for session %s: %w", sessionID, err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { pubsub.Close() }
	return out, cancel, nil
}
