package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/asset-derivatives/internal/config"
	"github.com/aliskhannn/asset-derivatives/internal/model"
)

// Producer publishes job outcome events to Kafka.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer writing to cfg.EventsTopic.
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.EventsTopic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Publish serializes ev to JSON and sends it keyed by job id, so events
// of one job keep their order within a partition.
func (p *Producer) Publish(ctx context.Context, ev model.JobEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}

	if err := p.Client.SendWithRetry(ctx, p.strategy, []byte(ev.JobID), data); err != nil {
		return fmt.Errorf("send job event: %w", err)
	}

	return nil
}
