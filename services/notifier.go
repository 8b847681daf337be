// services/notifier.go
package services

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// ChangeNotifier broadcasts "challenge table changed" signals over a Redis
// pub/sub channel. Payloads are advisory event names only — subscribers are
// expected to respond with a full refetch, never to patch from the payload.
type ChangeNotifier struct {
	rdb     *redis.Client
	channel string
}

func NewChangeNotifier(rdb *redis.Client, channel string) *ChangeNotifier {
	return &ChangeNotifier{rdb: rdb, channel: channel}
}

// Publish fires a change event. Best effort: a lost notification only delays
// subscribers until their next scheduled refresh, so failures are logged and
// swallowed.
func (n *ChangeNotifier) Publish(ctx context.Context, event string) {
	if err := n.rdb.Publish(ctx, n.channel, event).Err(); err != nil {
		log.Printf("⚠️ [NOTIFY] Failed to publish %q: %v", event, err)
	}
}

// Signals subscribes to the change channel and returns a coalesced
// please-refetch signal stream. The channel has capacity 1; signals arriving
// while one is already pending are dropped, which is fine because a single
// refetch covers them all.
func (n *ChangeNotifier) Signals(ctx context.Context) <-chan struct{} {
	sub := n.rdb.Subscribe(ctx, n.channel)
	out := make(chan struct{}, 1)

	go func() {
		defer sub.Close()
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}

// Events subscribes to the change channel and returns the raw event names,
// used by the SSE stream to relay them to clients.
func (n *ChangeNotifier) Events(ctx context.Context) (<-chan string, func()) {
	sub := n.rdb.Subscribe(ctx, n.channel)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// slow consumer — drop, clients refetch anyway
				}
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
