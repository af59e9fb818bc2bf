package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
)

var ErrIncompleteStop = errors.New("stop record needs a station and a mission")

// HandleStop merges one observed stop record into its mission. The mission is
// created when unknown. Full changes are stored, small changes only cached,
// and the tasks of the update are submitted after that.
func (t *Tracker) HandleStop(ctx context.Context, stop *ctdf.StopRecord) (mission.Result, error) {
	if stop.MissionID == "" || stop.StationID == "" {
		return mission.Result{Outcome: mission.OutcomeIgnored}, ErrIncompleteStop
	}

	unlock, err := t.Locks.Lock(ctx, missionLockKey(stop.MissionID))
	if err != nil {
		return mission.Result{}, err
	}
	defer unlock()

	now := t.now()

	m, err := t.loadMission(ctx, stop.MissionID)
	created := false
	if errors.Is(err, ctdf.ErrNotFound) {
		m = mission.New(stop.MissionID)
		created = true
	} else if err != nil {
		return mission.Result{}, err
	}

	if m.SeriesID == "" {
		m.SeriesID = m.DeriveSeriesID(t.config().InternationalSeries)
	}

	s, err := t.loadSeries(ctx, m.SeriesID)
	if err != nil {
		return mission.Result{}, err
	}
	if s == nil && m.SeriesID != ctdf.OrphanSeriesID {
		log.Warn().Str("mission", m.PrimaryIdentifier).Str("series", m.SeriesID).Msg("Series not found, mission is an orphan")
		m.SeriesID = ctdf.OrphanSeriesID
	}

	register := false
	if created && s != nil && m.IsSupplementary() {
		register = t.copyBaseOffset(ctx, m)
	}

	m.Attach(s, t.config())
	result := m.UpdateStop(stop, now)

	switch result.Outcome {
	case mission.OutcomeFullChange:
		if err := t.persistMission(ctx, m); err != nil {
			log.Error().Err(err).Str("mission", m.PrimaryIdentifier).Msg("Failed to store mission")
			return result, err
		}
	case mission.OutcomeSmallChange:
		if err := t.cacheMission(ctx, m); err != nil {
			log.Error().Err(err).Str("mission", m.PrimaryIdentifier).Msg("Failed to cache mission")
			return result, err
		}
	}

	if s != nil {
		if err := t.savePoints(ctx, s.TakeDirtyPoints()); err != nil {
			log.Error().Err(err).Str("series", s.PrimaryIdentifier).Msg("Failed to store pattern points")
		}

		if result.Outcome == mission.OutcomeFullChange && (result.CatalogChanged || register) {
			if err := t.registerMission(ctx, s.PrimaryIdentifier, m); err != nil {
				return result, err
			}
		}
	}

	if err := t.submit(ctx, m.TakeTasks()); err != nil {
		return result, err
	}

	t.metrics().StopUpdate(result.Outcome.String())
	if result.Outcome == mission.OutcomeFullChange {
		t.metrics().MissionDelay(m.SeriesID, m.Delay)
	}

	if t.Events != nil && result.Outcome != mission.OutcomeIgnored {
		t.Events.IndexUpdate(ctx, UpdateEvent{
			Timestamp: now,
			MissionID: m.PrimaryIdentifier,
			SeriesID:  m.SeriesID,
			StationID: stop.StationID,
			Status:    stop.Status.String(),
			Outcome:   result.Outcome.String(),
			Delay:     m.Delay,
		})
	}

	return result, nil
}

// copyBaseOffset gives a new supplementary mission the offset of the mission it shares its number with
func (t *Tracker) copyBaseOffset(ctx context.Context, m *mission.Mission) bool {
	base, err := t.loadMission(ctx, m.Code().Base().ID())
	if err != nil || base.Offset == nil {
		return false
	}

	m.SetOffsetMinutes(*base.Offset)
	m.NominalDate = base.NominalDate

	return true
}

// registerMission adds a mission to the catalog of the stored series
func (t *Tracker) registerMission(ctx context.Context, seriesID string, m *mission.Mission) error {
	direction, entry, ok := m.CatalogEntry()
	if !ok {
		return nil
	}

	unlock, err := t.Locks.Lock(ctx, seriesLockKey(seriesID))
	if err != nil {
		return err
	}
	defer unlock()

	s, err := t.Store.GetSeries(ctx, seriesID)
	if err != nil {
		return err
	}

	if !s.AddMission(direction, entry) {
		return nil
	}

	log.Info().Str("series", seriesID).Str("mission", m.PrimaryIdentifier).Int("offset", entry.Offset).Msg("Added mission to catalog")

	return t.Store.PutSeries(ctx, s)
}

// HandleCheck asks the stations ahead of a mission whether it is announced
func (t *Tracker) HandleCheck(ctx context.Context, missionID string) error {
	unlock, err := t.Locks.Lock(ctx, missionLockKey(missionID))
	if err != nil {
		return err
	}
	defer unlock()

	m, err := t.loadMission(ctx, missionID)
	if err != nil {
		return err
	}

	s, err := t.loadSeries(ctx, m.SeriesID)
	if err != nil {
		return err
	}

	m.Attach(s, t.config())
	m.CheckAnnouncements(t.now())

	return t.submit(ctx, m.TakeTasks())
}

// HandleTask runs a dispatched task against its target
func (t *Tracker) HandleTask(ctx context.Context, task ctdf.Task) error {
	kind, identifier := ctdf.SplitTarget(task.Target)

	switch kind {
	case ctdf.TaskTargetStation:
		if t.Stations == nil {
			log.Debug().Str("task", task.Name).Str("station", identifier).Msg("No station agent, dropping task")
			return nil
		}

		return t.Stations.RequestStation(ctx, task)
	case ctdf.TaskTargetMission:
		switch task.Instruction {
		case ctdf.TaskInstructionForward:
			if task.Stop == nil {
				log.Warn().Str("task", task.Name).Msg("Forward task without stop record")
				return nil
			}

			stop := *task.Stop
			stop.MissionID = identifier
			_, err := t.HandleStop(ctx, &stop)

			return err
		default:
			err := t.HandleCheck(ctx, identifier)
			if errors.Is(err, ctdf.ErrNotFound) {
				log.Warn().Str("task", task.Name).Str("mission", identifier).Msg("Mission for task not found")
				return nil
			}

			return err
		}
	}

	return fmt.Errorf("unknown task target %q", task.Target)
}

// HandleDepartures processes the departures a station reported. Supplementary
// missions in the list cancel the stop of the mission they replace.
func (t *Tracker) HandleDepartures(ctx context.Context, stops []*ctdf.StopRecord) error {
	var errs []error

	for _, stop := range stops {
		if replaced, ok := ctdf.ReplacedMissionCode(stop.MissionID); ok {
			cancel := &ctdf.StopRecord{
				StationID: stop.StationID,
				MissionID: replaced,
				Status:    ctdf.StopStatusCanceled,
				Departure: stop.Departure,
			}
			if _, err := t.HandleStop(ctx, cancel); err != nil {
				errs = append(errs, err)
			}
		}

		if _, err := t.HandleStop(ctx, stop); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

var _ series.Member = (*mission.Mission)(nil)
