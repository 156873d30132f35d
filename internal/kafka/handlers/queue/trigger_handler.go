package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/asset-derivatives/internal/model"
)

type sweeper interface {
	TriggerSweep(ctx context.Context) bool
}

// TriggerHandler starts a sweep for every "jobs enqueued" message.
type TriggerHandler struct {
	sweeper sweeper
}

func NewTriggerHandler(s sweeper) *TriggerHandler {
	return &TriggerHandler{sweeper: s}
}

// Handle triggers a sweep. An empty message body is a valid trigger.
func (h *TriggerHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var trigger model.SweepTrigger
	if len(msg.Value) > 0 {
		if err := json.Unmarshal(msg.Value, &trigger); err != nil {
			return fmt.Errorf("unmarshal sweep trigger: %w", err)
		}
	}

	started := h.sweeper.TriggerSweep(ctx)

	zlog.Logger.Info().
		Str("reason", trigger.Reason).
		Str("job_id", trigger.JobID).
		Bool("started", started).
		Msg("sweep trigger received")

	return nil
}
