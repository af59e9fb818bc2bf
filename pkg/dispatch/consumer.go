package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/tracker"
)

type TaskHandler interface {
	HandleTask(ctx context.Context, task ctdf.Task) error
}

// TaskConsumer acks handled tasks and rejects failed ones, which the cleaner returns to the queue
type TaskConsumer struct {
	Handler TaskHandler
}

func (c *TaskConsumer) Consume(batch rmq.Deliveries) {
	ctx := context.Background()

	for _, delivery := range batch {
		var task ctdf.Task
		if err := json.Unmarshal([]byte(delivery.Payload()), &task); err != nil {
			log.Error().Err(err).Msg("Failed to decode task")
			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject task")
			}
			continue
		}

		taskLogger := log.With().Str("task", task.Name).Str("target", task.Target).Logger()

		if err := c.Handler.HandleTask(ctx, task); err != nil {
			if errors.Is(err, tracker.ErrLocked) {
				taskLogger.Debug().Err(err).Msg("Task target busy")
			} else {
				taskLogger.Error().Err(err).Msg("Failed to handle task")
			}

			if err := delivery.Reject(); err != nil {
				taskLogger.Error().Err(err).Msg("Failed to reject task")
			}
			continue
		}

		if err := delivery.Ack(); err != nil {
			taskLogger.Error().Err(err).Msg("Failed to ack task")
		}
	}
}
