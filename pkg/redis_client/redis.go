package redis_client

import (
	"context"
	"strconv"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultDatabase = 0

func Connect() error {
	address := defaultConnectionAddress
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["TRAVIGO_REDIS_ADDRESS"] != "" {
		address = env["TRAVIGO_REDIS_ADDRESS"]
	}

	if env["TRAVIGO_REDIS_DATABASE"] != "" {
		n, err := strconv.Atoi(env["TRAVIGO_REDIS_DATABASE"])
		if err != nil {
			return err
		}
		database = n
	}

	Client = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: env["TRAVIGO_REDIS_PASSWORD"],
		DB:       database,
	})

	if err := Client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	errChan := make(chan error, 10)
	go logQueueErrors(errChan)

	var err error
	QueueConnection, err = rmq.OpenConnectionWithRedisClient("railtracker", Client, errChan)

	return err
}

func logQueueErrors(errChan <-chan error) {
	for err := range errChan {
		switch err := err.(type) {
		case *rmq.HeartbeatError:
			if err.Count == rmq.HeartbeatErrorLimit {
				log.Error().Err(err).Msg("Queue heartbeat failed too often")
			} else {
				log.Warn().Err(err).Msg("Queue heartbeat error")
			}
		case *rmq.ConsumeError:
			log.Warn().Err(err).Msg("Queue consume error")
		default:
			log.Error().Err(err).Msg("Queue error")
		}
	}
}
