package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/railtracker/pkg/chart"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
)

// seriesMembers loads every stored mission of a series and attaches it
func (t *Tracker) seriesMembers(ctx context.Context, s *series.Series) ([]*mission.Mission, []series.Member, error) {
	missions, err := t.Store.MissionsForSeries(ctx, s.PrimaryIdentifier)
	if err != nil {
		return nil, nil, err
	}

	members := make([]series.Member, 0, len(missions))
	for _, m := range missions {
		m.Attach(s, t.config())
		members = append(members, m)
	}

	return missions, members, nil
}

func (t *Tracker) lockSeries(ctx context.Context, seriesID string) (*series.Series, func(), error) {
	unlock, err := t.Locks.Lock(ctx, seriesLockKey(seriesID))
	if err != nil {
		return nil, nil, err
	}

	s, err := t.requireSeries(ctx, seriesID)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	return s, unlock, nil
}

// ActivateNewDay consolidates yesterday's missions of a series into this week's
// chart and regenerates the regular missions for today
func (t *Tracker) ActivateNewDay(ctx context.Context, seriesID string) error {
	s, unlock, err := t.lockSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	defer unlock()

	now := t.now()

	_, members, err := t.seriesMembers(ctx, s)
	if err != nil {
		return err
	}

	chartID := chart.ID(seriesID, now)
	c, err := t.Store.GetChart(ctx, chartID)
	if errors.Is(err, ctdf.ErrNotFound) {
		c = chart.New(chartID)
	} else if err != nil {
		return err
	}

	result := s.ActivateNewDay(now, members, c, t.config())

	for _, identifier := range result.Expired {
		if err := t.dropMission(ctx, identifier); err != nil {
			return err
		}
	}

	var tasks []ctdf.Task
	for _, member := range result.Activated {
		m := member.(*mission.Mission)

		if err := t.persistMission(ctx, m); err != nil {
			return fmt.Errorf("activating %s: %w", m.PrimaryIdentifier, err)
		}

		tasks = append(tasks, m.TakeTasks()...)
	}

	if err := t.Store.PutChart(ctx, c); err != nil {
		return err
	}

	if err := t.savePoints(ctx, append(result.Points, s.TakeDirtyPoints()...)); err != nil {
		return err
	}

	if err := t.Store.PutSeries(ctx, s); err != nil {
		return err
	}

	return t.submit(ctx, tasks)
}

// ActivateAll runs ActivateNewDay for every stored series, a few at a time
func (t *Tracker) ActivateAll(ctx context.Context) error {
	seriesIDs, err := t.Store.AllSeriesIDs(ctx)
	if err != nil {
		return err
	}

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(4)

	for _, seriesID := range seriesIDs {
		seriesID := seriesID
		p.Go(func(ctx context.Context) error {
			if err := t.ActivateNewDay(ctx, seriesID); err != nil {
				log.Error().Err(err).Str("series", seriesID).Msg("Failed to activate new day")
				return fmt.Errorf("%s: %w", seriesID, err)
			}

			return nil
		})
	}

	return p.Wait()
}

// ChangeOffsets moves the pattern points of a series and compensates the offsets of its missions
func (t *Tracker) ChangeOffsets(ctx context.Context, seriesID string, deltaUp int, deltaDown int) error {
	s, unlock, err := t.lockSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	defer unlock()

	missions, members, err := t.seriesMembers(ctx, s)
	if err != nil {
		return err
	}

	s.ChangeOffsets(deltaUp, deltaDown, members)

	for _, m := range missions {
		if err := t.persistMission(ctx, m); err != nil {
			return fmt.Errorf("shifting %s: %w", m.PrimaryIdentifier, err)
		}
	}

	if err := t.savePoints(ctx, s.TakeDirtyPoints()); err != nil {
		return err
	}

	log.Info().Str("series", seriesID).Int("up", deltaUp).Int("down", deltaDown).Msg("Changed offsets")

	return t.Store.PutSeries(ctx, s)
}

// DeletePoint removes a station from a series and sends every mission a revoked stop for it
func (t *Tracker) DeletePoint(ctx context.Context, seriesID string, stationID string) error {
	s, unlock, err := t.lockSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	defer unlock()

	tasks, point, ok := s.DeletePoint(stationID, t.now(), t.config().IntervalBetweenUpdateMessages)
	if !ok {
		return ctdf.ErrNotFound
	}

	if err := t.Store.DeletePoint(ctx, point.PrimaryIdentifier); err != nil {
		return err
	}

	log.Info().Str("series", seriesID).Str("station", point.StationID).Int("missions", len(tasks)).Msg("Deleted pattern point")

	return t.submit(ctx, tasks)
}

// ApplyImport applies a timetable import to a series, creating the series when needed
func (t *Tracker) ApplyImport(ctx context.Context, seriesID string, diff series.Diff) error {
	unlock, err := t.Locks.Lock(ctx, seriesLockKey(seriesID))
	if err != nil {
		return err
	}
	defer unlock()

	s, err := t.loadSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if s == nil {
		s = series.New(seriesID)
	}

	s.ApplyDiff(diff)

	for _, stationID := range diff.Delete {
		if err := t.Store.DeletePoint(ctx, ctdf.PatternPointID(seriesID, stationID)); err != nil && !errors.Is(err, ctdf.ErrNotFound) {
			return err
		}
	}

	changed := append(append([]*ctdf.PatternPoint{}, diff.Create...), diff.Update...)
	for _, point := range changed {
		point.SeriesID = seriesID
		point.PrimaryIdentifier = ctdf.PatternPointID(seriesID, point.StationID)
	}

	if err := t.savePoints(ctx, changed); err != nil {
		return err
	}

	log.Info().
		Str("series", seriesID).
		Int("created", len(diff.Create)).
		Int("updated", len(diff.Update)).
		Int("deleted", len(diff.Delete)).
		Msg("Applied import")

	return t.Store.PutSeries(ctx, s)
}

// OptimizeODIDs compacts the weekday origin and destination tables of all missions of a series
func (t *Tracker) OptimizeODIDs(ctx context.Context, seriesID string) error {
	s, unlock, err := t.lockSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	defer unlock()

	missions, _, err := t.seriesMembers(ctx, s)
	if err != nil {
		return err
	}

	for _, m := range missions {
		m.OptimizeODIDs()
		if err := t.persistMission(ctx, m); err != nil {
			return err
		}
	}

	return nil
}

// RebuildCatalog recreates the catalog of a series from its stored missions
func (t *Tracker) RebuildCatalog(ctx context.Context, seriesID string) error {
	s, unlock, err := t.lockSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	defer unlock()

	_, members, err := t.seriesMembers(ctx, s)
	if err != nil {
		return err
	}

	s.RebuildCatalog(members)

	return t.Store.PutSeries(ctx, s)
}

// PlanMission stores a mission with a known offset and route ahead of any stop
// update, activates it for today and adds it to the catalog. Returns false
// when the mission already exists.
func (t *Tracker) PlanMission(ctx context.Context, identifier string, offset int, origin string, destination string) (bool, error) {
	unlock, err := t.Locks.Lock(ctx, missionLockKey(identifier))
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, err := t.loadMission(ctx, identifier); err == nil {
		return false, nil
	} else if !errors.Is(err, ctdf.ErrNotFound) {
		return false, err
	}

	m := mission.New(identifier)
	m.SeriesID = m.DeriveSeriesID(t.config().InternationalSeries)

	s, err := t.requireSeries(ctx, m.SeriesID)
	if err != nil {
		return false, fmt.Errorf("series %s of mission %s: %w", m.SeriesID, identifier, err)
	}

	m.Attach(s, t.config())
	m.SetOffsetMinutes(offset)
	m.SetODIDs(origin, destination)
	m.Activate(t.now())

	if err := t.persistMission(ctx, m); err != nil {
		return false, err
	}

	if err := t.registerMission(ctx, s.PrimaryIdentifier, m); err != nil {
		return true, err
	}

	return true, t.submit(ctx, m.TakeTasks())
}
