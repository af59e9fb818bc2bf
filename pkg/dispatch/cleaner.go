package dispatch

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
)

const maxReturnedPerClean = 1000

// Clean returns deliveries of dead consumers and puts rejected tasks back for another attempt
func Clean(connection rmq.Connection, queueNames []string) (int64, error) {
	returned, err := rmq.NewCleaner(connection).Clean()
	if err != nil {
		return returned, err
	}

	for _, name := range queueNames {
		queue, err := connection.OpenQueue(name)
		if err != nil {
			return returned, err
		}

		count, err := queue.ReturnRejected(maxReturnedPerClean)
		if err != nil {
			return returned, err
		}
		returned += count
	}

	return returned, nil
}

func StartCleaner(ctx context.Context, connection rmq.Connection, interval time.Duration) {
	log.Info().Msg("Starting task queue cleaner process")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			returned, err := Clean(connection, []string{MissionQueueName, StationQueueName})
			if err != nil {
				log.Error().Err(err).Msg("Failed to clean")
				continue
			}

			if returned != 0 {
				log.Info().Msgf("Cleaned %d records", returned)
			}
		}
	}
}
