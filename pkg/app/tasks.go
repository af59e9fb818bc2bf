package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/tracker"
	"github.com/travigo/railtracker/pkg/util"
)

type taskHandler interface {
	HandleTask(ctx context.Context, task ctdf.Task) error
}

// memoryTaskRunner executes the tasks of an in-memory tracker once they are due
type memoryTaskRunner struct {
	Tasks   *tracker.MemoryDispatcher
	Handler taskHandler
	Now     func() time.Time

	pending []ctdf.Task
}

func (r *memoryTaskRunner) runDue(ctx context.Context) int {
	r.pending = append(r.pending, r.Tasks.Take()...)

	now := r.Now()

	var due []ctdf.Task
	r.pending, due = util.Partition(r.pending, func(task ctdf.Task) bool {
		return task.NotBefore.After(now)
	})

	for _, task := range due {
		if err := r.Handler.HandleTask(ctx, task); err != nil {
			log.Error().Err(err).Str("task", task.Name).Msg("Failed to run task")
		}
	}

	return len(due)
}

func (r *memoryTaskRunner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runDue(ctx)
		}
	}
}
