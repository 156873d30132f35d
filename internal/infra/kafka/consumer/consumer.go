package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/asset-derivatives/internal/config"
)

// fetchBackoff is the pause after a fetch that failed every retry.
const fetchBackoff = 500 * time.Millisecond

// triggerHandler defines the interface for handling sweep trigger messages.
type triggerHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
}

// Consumer represents a Kafka consumer along with its configuration
// and the handler that processes sweep triggers.
type Consumer struct {
	Client   *wbfkafka.Consumer
	handler  triggerHandler
	cfg      *config.Kafka
	strategy retry.Strategy
}

// New creates a new Consumer subscribed to cfg.TriggerTopic.
func New(cfg *config.Kafka, s retry.Strategy, h triggerHandler) *Consumer {
	consumer := wbfkafka.NewConsumer(cfg.Brokers, cfg.TriggerTopic, cfg.GroupID)

	return &Consumer{
		Client:   consumer,
		handler:  h,
		cfg:      cfg,
		strategy: s,
	}
}

// Consume fetches messages until ctx is canceled, hands each to the
// handler and commits it once handled.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().
		Str("topic", c.cfg.TriggerTopic).
		Msg("starting consumer")

	for {
		if ctx.Err() != nil {
			zlog.Logger.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.Client.Fetch(ctx)
			return fetchErr
		}, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zlog.Logger.Err(err).Msg("failed to fetch message")
			time.Sleep(fetchBackoff)
			continue
		}

		if err := c.handler.Handle(ctx, msg); err != nil {
			// a malformed trigger is dropped, not redelivered forever
			zlog.Logger.Err(err).
				Str("message", string(msg.Value)).
				Msg("failed to handle sweep trigger")
		}

		err = retry.Do(func() error {
			return c.Client.Commit(ctx, msg)
		}, c.strategy)
		if err != nil {
			zlog.Logger.Err(err).Msg("failed to commit message after retries")
			continue
		}

		zlog.Logger.Debug().
			Int64("offset", msg.Offset).
			Msg("sweep trigger committed")
	}
}
