package tracker

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
)

// Mission returns the current state of a mission
func (t *Tracker) Mission(ctx context.Context, identifier string) (*mission.Mission, error) {
	return t.loadMission(ctx, identifier)
}

// Series returns a series with its pattern points
func (t *Tracker) Series(ctx context.Context, identifier string) (*series.Series, error) {
	return t.requireSeries(ctx, identifier)
}

func (t *Tracker) CurrentMissions(ctx context.Context, seriesID string, direction ctdf.Direction) ([]string, error) {
	s, err := t.requireSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	return s.CurrentMissionIDs(direction, t.now()), nil
}

// RelevantMissions lists the missions leaving origin within span after start
func (t *Tracker) RelevantMissions(ctx context.Context, seriesID string, origin string, start time.Time, span time.Duration, direction *ctdf.Direction, destination string) ([]series.CatalogHit, error) {
	s, err := t.requireSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	hits, ok := s.RelevantMissions(origin, start.In(ctdf.CET), span, direction, destination)
	if !ok {
		return nil, ctdf.ErrNotFound
	}

	return hits, nil
}

// Statistics summarizes the missions currently on a series
type Statistics struct {
	Series   string         `json:"series"`
	Missions int            `json:"missions"`
	Status   map[string]int `json:"status"`
	Delay    map[int]int    `json:"delay"`
	Average  float64        `json:"average"`
}

func (t *Tracker) SeriesStatistics(ctx context.Context, seriesID string) (*Statistics, error) {
	s, err := t.requireSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	statistics := &Statistics{
		Series: seriesID,
		Status: map[string]int{},
		Delay:  map[int]int{},
	}

	total := 0.0
	for _, direction := range []ctdf.Direction{ctdf.DirectionDown, ctdf.DirectionUp} {
		for _, missionID := range s.CurrentMissionIDs(direction, now) {
			m, err := t.loadMission(ctx, missionID)
			if errors.Is(err, ctdf.ErrNotFound) {
				continue
			} else if err != nil {
				return nil, err
			}

			status, delay := m.StatusAt(now)
			statistics.Missions++
			statistics.Status[status.String()]++

			if status == ctdf.MissionStatusRunning || status == ctdf.MissionStatusAnnounced {
				statistics.Delay[int(math.Round(delay))]++
				total += delay
			}
		}
	}

	if counted := countValues(statistics.Delay); counted > 0 {
		statistics.Average = total / float64(counted)
	}

	return statistics, nil
}

func countValues(histogram map[int]int) int {
	total := 0
	for _, count := range histogram {
		total += count
	}

	return total
}

// Offsets reports the offset minute histograms of a series and the changes that would align them
type Offsets struct {
	Overview  [4]map[int]int `json:"overview"`
	DeltaUp   int            `json:"delta_up"`
	DeltaDown int            `json:"delta_down"`
	Suggested bool           `json:"suggested"`
}

func (t *Tracker) Offsets(ctx context.Context, seriesID string) (*Offsets, error) {
	s, err := t.requireSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	up, down, ok := s.NeededOffsetChanges()

	return &Offsets{
		Overview:  s.OffsetOverview(),
		DeltaUp:   up,
		DeltaDown: down,
		Suggested: ok,
	}, nil
}
