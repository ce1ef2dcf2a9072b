package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowstate/agency/internal/application/realtime"
	domain "github.com/flowstate/agency/internal/domain/realtime"
	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultInvalidationChannel is the Pub/Sub channel shared by all instances
	DefaultInvalidationChannel = "agency:invalidation"
	defaultCloseTimeout        = 5 * time.Second
)

// ErrSubscriptionRunning is returned when Open is called on an already open channel
var ErrSubscriptionRunning = errors.New("invalidation subscription already running")

// RedisInvalidationChannel carries invalidation events between instances over Redis Pub/Sub.
// Every instance, including the publisher, receives what is published.
type RedisInvalidationChannel struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// InvalidationChannelOption configures a RedisInvalidationChannel
type InvalidationChannelOption func(*RedisInvalidationChannel)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) InvalidationChannelOption {
	return func(c *RedisInvalidationChannel) {
		if channel != "" {
			c.channel = channel
		}
	}
}

// WithChannelLogger sets the logger
func WithChannelLogger(logger *zap.Logger) InvalidationChannelOption {
	return func(c *RedisInvalidationChannel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOwnedClient makes Close also close the Redis client
func WithOwnedClient() InvalidationChannelOption {
	return func(c *RedisInvalidationChannel) {
		c.ownsClient = true
	}
}

// NewRedisInvalidationChannel creates a channel on client. The caller keeps ownership
// of client unless WithOwnedClient is given.
func NewRedisInvalidationChannel(client *redis.Client, opts ...InvalidationChannelOption) *RedisInvalidationChannel {
	c := &RedisInvalidationChannel{
		client:  client,
		channel: DefaultInvalidationChannel,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialInvalidationChannel connects to Redis and returns a channel owning the new client
func DialInvalidationChannel(cfg config.RedisConfig, opts ...InvalidationChannelOption) (*RedisInvalidationChannel, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisInvalidationChannel(client, append(opts, WithOwnedClient())...), nil
}

// Channel returns the Pub/Sub channel name
func (c *RedisInvalidationChannel) Channel() string {
	return c.channel
}

// Publish sends evt to every subscribed instance
func (c *RedisInvalidationChannel) Publish(ctx context.Context, evt domain.InvalidationEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, data).Err(); err != nil {
		c.logger.Error("Failed to publish invalidation event",
			zap.String("channel", c.channel),
			zap.String("event", string(evt.Name)),
			zap.Error(err))
		return fmt.Errorf("failed to publish invalidation event: %w", err)
	}
	c.logger.Debug("Published invalidation event",
		zap.String("event", string(evt.Name)),
		zap.String("organization_id", evt.Scope()))
	return nil
}

// Open subscribes and returns once Redis has confirmed the subscription.
// Messages are handed to handler from a background goroutine until ctx is done or Close is called.
func (c *RedisInvalidationChannel) Open(ctx context.Context, handler realtime.Handler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrSubscriptionRunning
	}
	c.running = true
	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	pubsub := c.client.Subscribe(subCtx, c.channel)
	if _, err := pubsub.Receive(subCtx); err != nil {
		_ = pubsub.Close()
		cancel()
		close(done)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		return fmt.Errorf("failed to subscribe to %s: %w", c.channel, err)
	}
	c.logger.Info("Subscribed to invalidation channel", zap.String("channel", c.channel))

	go c.receive(subCtx, pubsub, handler, done)
	return nil
}

func (c *RedisInvalidationChannel) receive(ctx context.Context, pubsub *redis.PubSub, handler realtime.Handler, done chan struct{}) {
	defer func() {
		_ = pubsub.Close()
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Invalidation subscription stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				c.logger.Warn("Invalidation channel closed")
				return
			}
			evt, err := domain.ParseEvent([]byte(msg.Payload))
			if err != nil {
				c.logger.Warn("Discarding malformed invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			c.dispatch(handler, evt)
		}
	}
}

func (c *RedisInvalidationChannel) dispatch(handler realtime.Handler, evt domain.InvalidationEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic in invalidation handler", zap.Any("panic", r))
		}
	}()
	handler(evt)
}

// Close stops the subscription and waits for the receive loop to exit
func (c *RedisInvalidationChannel) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(defaultCloseTimeout):
			c.logger.Warn("Timeout waiting for invalidation subscription to stop")
		}
	}
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

var (
	_ realtime.EventSource = (*RedisInvalidationChannel)(nil)
	_ realtime.Publisher   = (*RedisInvalidationChannel)(nil)
)
