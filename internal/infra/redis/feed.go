package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
	"quiz-ledger-service/internal/observability"
)

// Feed fans committed attempt facts out to other instances over Redis pub/sub.
type Feed struct {
	client  *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger

	// resubscribe backoff bounds
	retryMin time.Duration
	retryMax time.Duration
}

func NewFeed(client *redis.Client, channel string, logger zerolog.Logger) *Feed {
	return &Feed{
		client:   client,
		channel:  channel,
		nodeID:   uuid.NewString(),
		logger:   logger.With().Str("component", "redis_feed").Logger(),
		retryMin: 100 * time.Millisecond,
		retryMax: 5 * time.Second,
	}
}

// NodeID identifies this instance in published events.
func (f *Feed) NodeID() string { return f.nodeID }

func (f *Feed) Publish(ctx context.Context, fact domain.AttemptFact) error {
	payload, err := ingest.EncodeFactEvent(f.nodeID, fact)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		observability.FeedPublishFailures().WithLabelValues("redis").Inc()
		return err
	}
	return nil
}

// Consume delivers facts published by other instances until ctx is done.
// A broken subscription is re-established with exponential backoff.
func (f *Feed) Consume(ctx context.Context, handle func(context.Context, domain.AttemptFact)) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer func() { _ = pubsub.Close() }()

	wait := f.retryMin
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			f.logger.Warn().Err(err).Dur("retry_in", wait).Msg("attempt feed subscription lost")
			_ = pubsub.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait = min(wait*2, f.retryMax)
			pubsub = f.client.Subscribe(ctx, f.channel)
			continue
		}
		wait = f.retryMin

		event, err := ingest.DecodeFactEvent([]byte(msg.Payload))
		if err != nil {
			f.logger.Warn().Err(err).Msg("invalid attempt feed payload")
			continue
		}
		if event.Source == f.nodeID {
			continue
		}
		handle(ctx, event.Fact)
	}
}
