package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
	"quiz-ledger-service/internal/observability"
)

// Connect dials NATS with reconnects enabled.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("quiz-ledger-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Feed publishes committed attempt facts on a NATS subject and delivers facts
// from other instances. Every instance subscribes without a queue group since
// each one serves its own live leaderboard listeners.
type Feed struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	logger  zerolog.Logger
}

func NewFeed(conn *nats.Conn, subject string, logger zerolog.Logger) *Feed {
	return &Feed{
		conn:    conn,
		subject: subject,
		nodeID:  uuid.NewString(),
		logger:  logger.With().Str("component", "nats_feed").Logger(),
	}
}

func (f *Feed) Publish(_ context.Context, fact domain.AttemptFact) error {
	payload, err := ingest.EncodeFactEvent(f.nodeID, fact)
	if err != nil {
		return err
	}
	if err := f.conn.Publish(f.subject, payload); err != nil {
		observability.FeedPublishFailures().WithLabelValues("nats").Inc()
		return err
	}
	return nil
}

// Consume subscribes until ctx is done, then drains the subscription.
func (f *Feed) Consume(ctx context.Context, handle func(context.Context, domain.AttemptFact)) error {
	sub, err := f.conn.Subscribe(f.subject, func(msg *nats.Msg) {
		f.dispatch(ctx, msg.Data, handle)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", f.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			f.logger.Warn().Err(err).Msg("failed to drain attempt feed subscription")
		}
	}()
	return nil
}

func (f *Feed) dispatch(ctx context.Context, payload []byte, handle func(context.Context, domain.AttemptFact)) {
	event, err := ingest.DecodeFactEvent(payload)
	if err != nil {
		f.logger.Warn().Err(err).Msg("invalid attempt feed payload")
		return
	}
	if event.Source == f.nodeID {
		return
	}
	handle(ctx, event.Fact)
}
