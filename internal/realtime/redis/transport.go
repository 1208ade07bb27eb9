// Package redis delivers realtime events over Redis Pub/Sub. Each namespace
// maps to one channel, "<prefix>:<namespace>".
package redis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
)

const (
	eventBuffer       = 64
	minReceiveBackoff = 100 * time.Millisecond
	maxReceiveBackoff = 5 * time.Second
)

var _ realtime.Transport = (*Transport)(nil)

// Transport subscribes to namespace channels on a shared client.
type Transport struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

type Option func(*Transport)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(client redis.UniversalClient, prefix string, opts ...Option) (*Transport, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = "docgen"
	}
	t := &Transport{
		client: client,
		prefix: prefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Channel returns the Pub/Sub channel for ns.
func (t *Transport) Channel(ns realtime.Namespace) string {
	return t.prefix + ":" + string(ns)
}

// Dial subscribes and waits for the subscription to be confirmed.
func (t *Transport) Dial(ctx context.Context, ns realtime.Namespace) (realtime.Conn, error) {
	channel := t.Channel(ns)
	pubsub := t.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		pubsub:  pubsub,
		channel: channel,
		events:  make(chan realtime.Event, eventBuffer),
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  t.logger,
	}
	go c.run(runCtx)
	return c, nil
}

type conn struct {
	pubsub  *redis.PubSub
	channel string
	events  chan realtime.Event
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger
}

func (c *conn) Events() <-chan realtime.Event {
	return c.events
}

func (c *conn) Close() error {
	c.cancel()
	err := c.pubsub.Close()
	<-c.done
	return err
}

// run reads until closed. go-redis reconnects and resubscribes on its own;
// every subscription confirmation after the first is surfaced as a
// reconnected event.
func (c *conn) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	backoff := minReceiveBackoff
	for {
		msg, err := c.pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("redis pubsub receive failed",
				"channel", c.channel,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReceiveBackoff)
			continue
		}
		backoff = minReceiveBackoff

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" {
				c.emit(ctx, realtime.Event{Name: realtime.EventReconnected, ReceivedAt: time.Now()})
			}
		case *redis.Message:
			ev, err := realtime.DecodeEvent([]byte(m.Payload))
			if err != nil {
				c.logger.Warn("discarding malformed realtime message",
					"channel", c.channel,
					"error", err,
				)
				continue
			}
			c.emit(ctx, ev)
		}
	}
}

func (c *conn) emit(ctx context.Context, ev realtime.Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
