// Package kafka delivers realtime events from Kafka topics, one topic per
// namespace ("<prefix>.<namespace>"). Without a consumer group every
// process sees every event, matching Pub/Sub fan-out.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
)

const eventBuffer = 64

var _ realtime.Transport = (*Transport)(nil)

// Config holds connection settings for the Kafka transport. There is no
// consumer group: every process holds its own session registry and must see
// every partition, so each client reads the whole topic directly.
type Config struct {
	Brokers     []string
	TopicPrefix string

	// ClientOpts are appended to the generated client options.
	ClientOpts []kgo.Opt
}

// Transport creates one consumer client per dialled namespace.
type Transport struct {
	cfg    Config
	logger *slog.Logger
}

type Option func(*Transport)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(cfg Config, opts ...Option) (*Transport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "docgen"
	}
	t := &Transport{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Topic returns the topic consumed for ns.
func (t *Transport) Topic(ns realtime.Namespace) string {
	return t.cfg.TopicPrefix + "." + strings.ReplaceAll(string(ns), "_", "-")
}

// Dial creates a consumer positioned at the end of the namespace topic.
func (t *Transport) Dial(ctx context.Context, ns realtime.Namespace) (realtime.Conn, error) {
	topic := t.Topic(ns)
	opts := []kgo.Opt{
		kgo.SeedBrokers(t.cfg.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	}
	opts = append(opts, t.cfg.ClientOpts...)

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka brokers: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		client: client,
		topic:  topic,
		events: make(chan realtime.Event, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: t.logger,
	}
	go c.run(runCtx)
	return c, nil
}

type conn struct {
	client *kgo.Client
	topic  string
	events chan realtime.Event
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

func (c *conn) Events() <-chan realtime.Event {
	return c.events
}

func (c *conn) Close() error {
	c.cancel()
	<-c.done
	return nil
}

// run polls until closed. franz-go retries broker connections internally; a
// clean poll after failed ones is surfaced as a reconnected event.
func (c *conn) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)
	defer c.client.Close()

	degraded := false
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		failed := false
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			failed = true
			c.logger.Warn("kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		if failed {
			degraded = true
			continue
		}
		if degraded {
			degraded = false
			c.emit(ctx, realtime.Event{Name: realtime.EventReconnected, ReceivedAt: time.Now()})
		}

		fetches.EachRecord(func(r *kgo.Record) {
			ev, err := realtime.DecodeEvent(r.Value)
			if err != nil {
				c.logger.Warn("discarding malformed realtime record",
					"topic", r.Topic,
					"offset", r.Offset,
					"error", err,
				)
				return
			}
			if ev.ID == "" && len(r.Key) > 0 {
				ev.ID = string(r.Key)
			}
			c.emit(ctx, ev)
		})
	}
}

func (c *conn) emit(ctx context.Context, ev realtime.Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
