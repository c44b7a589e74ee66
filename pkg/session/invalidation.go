package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/shopdesk/pkg/observability"
)

// DefaultChannel is the Redis pub/sub channel for cache invalidations.
const DefaultChannel = "shopdesk:session:invalidate"

// Invalidator drops cached contexts after a logout or a permission change.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateCredential(ctx context.Context, fingerprint string) error
	InvalidateAll(ctx context.Context) error
}

// LocalInvalidator applies invalidations to this process only.
type LocalInvalidator struct {
	cache *Cache
}

// NewLocalInvalidator creates an invalidator for a single-replica deployment
func NewLocalInvalidator(cache *Cache) *LocalInvalidator {
	return &LocalInvalidator{cache: cache}
}

func (l *LocalInvalidator) InvalidateUser(_ context.Context, userID string) error {
	l.cache.InvalidateUser(userID)
	return nil
}

func (l *LocalInvalidator) InvalidateCredential(_ context.Context, fingerprint string) error {
	l.cache.Invalidate(fingerprint)
	return nil
}

func (l *LocalInvalidator) InvalidateAll(_ context.Context) error {
	l.cache.Clear()
	return nil
}

// Bus fans invalidations out to every replica over Redis pub/sub. Each replica
// applies the change to its own cache locally first, then publishes it.
//
// Message format: "user:<id>", "token:<fingerprint>" or "all".
type Bus struct {
	client  *redis.Client
	channel string
	cache   *Cache
	logger  *observability.Logger
}

// NewBus creates a bus on channel (DefaultChannel when empty)
func NewBus(client *redis.Client, channel string, cache *Cache, logger *observability.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{client: client, channel: channel, cache: cache, logger: logger}
}

func (b *Bus) InvalidateUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	b.cache.InvalidateUser(userID)
	return b.publish(ctx, "user:"+userID)
}

func (b *Bus) InvalidateCredential(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}
	b.cache.Invalidate(fingerprint)
	return b.publish(ctx, "token:"+fingerprint)
}

func (b *Bus) InvalidateAll(ctx context.Context) error {
	b.cache.Clear()
	return b.publish(ctx, "all")
}

// publish failures are logged and returned; the local cache is already updated and
// other replicas fall back to TTL expiry.
func (b *Bus) publish(ctx context.Context, msg string) error {
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.logger.WithError(err).WithField("channel", b.channel).Warn("failed to publish session invalidation")
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Apply handles one message. Unrecognized messages are ignored.
func (b *Bus) Apply(msg string) {
	kind, arg, _ := strings.Cut(msg, ":")
	switch {
	case kind == "all":
		b.cache.Clear()
	case kind == "user" && arg != "":
		b.cache.InvalidateUser(arg)
	case kind == "token" && arg != "":
		b.cache.Invalidate(arg)
	default:
		b.logger.WithField("message", msg).Warn("ignoring malformed session invalidation")
	}
}

// Subscribe confirms the subscription and then applies messages in a goroutine until
// ctx is cancelled or the returned stop function is called.
func (b *Bus) Subscribe(ctx context.Context) (stop func() error, err error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	ch := pubsub.Channel()
	go func() {
		defer observability.RecoverPanic(b.logger, "session invalidation subscriber")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.Apply(msg.Payload)
			}
		}
	}()

	b.logger.WithField("channel", b.channel).Info("subscribed to session invalidations")
	return pubsub.Close, nil
}
