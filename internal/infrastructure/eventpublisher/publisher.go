package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/pinledger/internal/domain"
)

// ErrQueueFull is returned when an event is dropped because the buffer is full.
var ErrQueueFull = errors.New("event queue full")

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// EventPublisher queues ledger events and hands them to a Publisher from a
// single background worker, so a slow sink never blocks a ledger operation.
type EventPublisher struct {
	queue     chan domain.Event
	publisher Publisher
	logger    zerolog.Logger
	onDrop    func()
	dropped   atomic.Int64
}

// Config for EventPublisher.
type Config struct {
	Publisher  Publisher
	Logger     zerolog.Logger
	BufferSize int    // Events held before Publish starts dropping
	OnDrop     func() // Called for every dropped event, optional
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.OnDrop == nil {
		cfg.OnDrop = func() {}
	}

	return &EventPublisher{
		queue:     make(chan domain.Event, cfg.BufferSize),
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		onDrop:    cfg.OnDrop,
	}
}

// Publish queues an event without blocking. A full queue drops the event.
func (ep *EventPublisher) Publish(_ context.Context, event domain.Event) error {
	select {
	case ep.queue <- event:
		return nil
	default:
		ep.dropped.Add(1)
		ep.onDrop()
		return fmt.Errorf("%w: dropped %s %s", ErrQueueFull, event.Type, event.ID)
	}
}

// Dropped returns how many events were dropped so far.
func (ep *EventPublisher) Dropped() int64 {
	return ep.dropped.Load()
}

// Start begins the event publishing worker.
// It runs until the context is cancelled, then flushes what is already queued.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().Int("buffer", cap(ep.queue)).Msg("event publisher started")

	for {
		select {
		case <-ctx.Done():
			ep.flush()
			ep.logger.Info().Msg("event publisher shutting down")
			return ctx.Err()
		case event := <-ep.queue:
			ep.publishEvent(ctx, event)
		}
	}
}

func (ep *EventPublisher) flush() {
	ctx := context.Background()
	for {
		select {
		case event := <-ep.queue:
			ep.publishEvent(ctx, event)
		default:
			return
		}
	}
}

func (ep *EventPublisher) publishEvent(ctx context.Context, event domain.Event) {
	if err := ep.publisher.Publish(ctx, event); err != nil {
		ep.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("failed to publish event")
		return
	}

	ep.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Msg("event published")
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Int64("account_id", event.AccountID).
		Int64("counterparty_id", event.CounterpartyID).
		Str("amount", event.Amount.StringFixed(2)).
		Time("occurred_at", event.OccurredAt).
		Msg("EVENT PUBLISHED")

	return nil
}

// RedisPublisher publishes events as JSON on a redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends the event to the channel.
func (p *RedisPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, domain.Event) error { return nil }
