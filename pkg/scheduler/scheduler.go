package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
)

// NewDaySchedule is the time the timetable day is rolled over, in CET
const NewDaySchedule = "0 2 * * *"

type Activator interface {
	ActivateAll(ctx context.Context) error
}

type Scheduler struct {
	Activator Activator
	Schedule  string

	cron *cron.Cron
}

func New(activator Activator) *Scheduler {
	return &Scheduler{
		Activator: activator,
		Schedule:  NewDaySchedule,
	}
}

// Start registers the new day job and runs the cron until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithLocation(ctdf.CET))

	_, err := s.cron.AddFunc(s.Schedule, func() {
		s.RunNewDay(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Info().Str("schedule", s.Schedule).Msg("Started new day scheduler")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()

	return nil
}

func (s *Scheduler) RunNewDay(ctx context.Context) {
	log.Info().Msg("Activating new day")

	if err := s.Activator.ActivateAll(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to activate new day")
	}
}
