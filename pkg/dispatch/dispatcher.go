package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
)

const (
	ScheduledTasksKey = "scheduled-tasks"
	MissionQueueName  = "mission-tasks"
	StationQueueName  = "station-tasks"
)

// Dispatcher holds submitted tasks in a redis sorted set scored by their
// not-before time until Pump moves them onto the rmq queues. A task name is
// accepted once per DedupTTL.
type Dispatcher struct {
	Client     *redis.Client
	Connection rmq.Connection
	DedupTTL   time.Duration

	queues     map[string]rmq.Queue
	queueMutex sync.Mutex
}

func New(client *redis.Client, connection rmq.Connection, dedupTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		Client:     client,
		Connection: connection,
		DedupTTL:   dedupTTL,
		queues:     map[string]rmq.Queue{},
	}
}

func QueueForTarget(target string) string {
	if kind, _ := ctdf.SplitTarget(target); kind == ctdf.TaskTargetMission {
		return MissionQueueName
	}

	return StationQueueName
}

func (d *Dispatcher) queue(name string) (rmq.Queue, error) {
	d.queueMutex.Lock()
	defer d.queueMutex.Unlock()

	if queue, exists := d.queues[name]; exists {
		return queue, nil
	}

	queue, err := d.Connection.OpenQueue(name)
	if err != nil {
		return nil, err
	}
	d.queues[name] = queue

	return queue, nil
}

func (d *Dispatcher) Submit(ctx context.Context, tasks []ctdf.Task) error {
	for _, task := range tasks {
		fresh, err := d.Client.SetNX(ctx, "task-name:"+task.Name, task.Target, d.DedupTTL).Result()
		if err != nil {
			return err
		}
		if !fresh {
			log.Debug().Str("task", task.Name).Msg("Dropping duplicate task")
			continue
		}

		payload, err := json.Marshal(task)
		if err != nil {
			return err
		}

		if err := d.Client.ZAdd(ctx, ScheduledTasksKey, redis.Z{
			Score:  float64(task.NotBefore.Unix()),
			Member: payload,
		}).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Pump publishes every scheduled task due at now and returns how many it moved
func (d *Dispatcher) Pump(ctx context.Context, now time.Time) (int, error) {
	due, err := d.Client.ZRangeByScore(ctx, ScheduledTasksKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	published := 0
	for _, payload := range due {
		removed, err := d.Client.ZRem(ctx, ScheduledTasksKey, payload).Result()
		if err != nil {
			return published, err
		}
		// another pump got there first
		if removed == 0 {
			continue
		}

		var task ctdf.Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			log.Error().Err(err).Str("payload", payload).Msg("Dropping undecodable task")
			continue
		}

		queue, err := d.queue(QueueForTarget(task.Target))
		if err != nil {
			return published, err
		}
		if err := queue.Publish(payload); err != nil {
			return published, err
		}

		published++
	}

	return published, nil
}

func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("Starting scheduled task pump")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			published, err := d.Pump(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("Failed to pump scheduled tasks")
			} else if published > 0 {
				log.Debug().Int("tasks", published).Msg("Published scheduled tasks")
			}
		}
	}
}
