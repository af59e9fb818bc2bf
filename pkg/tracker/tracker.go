package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/chart"
	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/metrics"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrLocked is returned when a mission or series lock could not be obtained in time
var ErrLocked = errors.New("lock not obtained")

const missionCacheNamespace = "mission"

// Store persists missions, series, pattern points and charts.
// Lookups of absent documents return ctdf.ErrNotFound.
type Store interface {
	GetMission(ctx context.Context, identifier string) (*mission.Mission, error)
	// PutMission inserts a mission with version 0 or replaces the stored one
	// with the same version, bumping it. A stale version yields ctdf.ErrConflict.
	PutMission(ctx context.Context, m *mission.Mission) error
	DeleteMission(ctx context.Context, identifier string) error
	MissionsForSeries(ctx context.Context, seriesID string) ([]*mission.Mission, error)

	GetSeries(ctx context.Context, identifier string) (*series.Series, error)
	PutSeries(ctx context.Context, s *series.Series) error
	AllSeriesIDs(ctx context.Context) ([]string, error)

	PointsForSeries(ctx context.Context, seriesID string) ([]*ctdf.PatternPoint, error)
	PutPoints(ctx context.Context, points []*ctdf.PatternPoint) error
	DeletePoint(ctx context.Context, identifier string) error

	GetChart(ctx context.Context, identifier string) (*chart.Chart, error)
	PutChart(ctx context.Context, c *chart.Chart) error
}

// Cache keeps short lived copies by namespace and key. A miss is an error.
type Cache interface {
	Get(ctx context.Context, namespace string, key string) ([]byte, error)
	Set(ctx context.Context, namespace string, key string, value []byte) error
	Delete(ctx context.Context, namespace string, key string) error
}

// Locker serializes read-modify-write cycles on one key
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Dispatcher delivers tasks asynchronously, at least once, not before their
// NotBefore time and only once per task name
type Dispatcher interface {
	Submit(ctx context.Context, tasks []ctdf.Task) error
}

// StationAgent asks a station feed for fresh departures
type StationAgent interface {
	RequestStation(ctx context.Context, task ctdf.Task) error
}

// UpdateEvent is a processed stop update, for analytics
type UpdateEvent struct {
	Timestamp time.Time `json:"timestamp"`
	MissionID string    `json:"mission"`
	SeriesID  string    `json:"series"`
	StationID string    `json:"station"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome"`
	Delay     float64   `json:"delay"`
}

type EventSink interface {
	IndexUpdate(ctx context.Context, event UpdateEvent)
}

// Tracker loads missions and series, runs the engine on them and persists the outcome
type Tracker struct {
	Store      Store
	Cache      Cache
	Locks      Locker
	Dispatcher Dispatcher

	Registry series.StationRegistry
	Stations StationAgent
	Metrics  metrics.Recorder
	Events   EventSink

	Config *config.Engine

	Now func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now().In(ctdf.CET)
	}

	return time.Now().In(ctdf.CET)
}

var defaultEngine = config.Default()

func (t *Tracker) config() *config.Engine {
	if t.Config == nil {
		return defaultEngine
	}

	return t.Config
}

func (t *Tracker) metrics() metrics.Recorder {
	if t.Metrics == nil {
		return metrics.Noop{}
	}

	return t.Metrics
}

func missionLockKey(identifier string) string {
	return "mission:" + identifier
}

func seriesLockKey(identifier string) string {
	return "series:" + identifier
}

// loadMission prefers the cached copy, which carries small changes the store
// does not have yet. Returns ctdf.ErrNotFound for unknown missions.
func (t *Tracker) loadMission(ctx context.Context, identifier string) (*mission.Mission, error) {
	if t.Cache != nil {
		if cached, err := t.Cache.Get(ctx, missionCacheNamespace, identifier); err == nil {
			var m *mission.Mission
			if err := bson.Unmarshal(cached, &m); err == nil && m != nil {
				m.Normalize()
				return m, nil
			}

			log.Warn().Str("mission", identifier).Msg("Discarding unreadable cached mission")
		}
	}

	return t.Store.GetMission(ctx, identifier)
}

func (t *Tracker) cacheMission(ctx context.Context, m *mission.Mission) error {
	if t.Cache == nil {
		return nil
	}

	encoded, err := bson.Marshal(m)
	if err != nil {
		return err
	}

	return t.Cache.Set(ctx, missionCacheNamespace, m.PrimaryIdentifier, encoded)
}

func (t *Tracker) persistMission(ctx context.Context, m *mission.Mission) error {
	if err := t.Store.PutMission(ctx, m); err != nil {
		return err
	}

	if err := t.cacheMission(ctx, m); err != nil {
		log.Error().Err(err).Str("mission", m.PrimaryIdentifier).Msg("Failed to refresh mission cache")
	}

	return nil
}

func (t *Tracker) dropMission(ctx context.Context, identifier string) error {
	if err := t.Store.DeleteMission(ctx, identifier); err != nil && !errors.Is(err, ctdf.ErrNotFound) {
		return err
	}

	if t.Cache != nil {
		t.Cache.Delete(ctx, missionCacheNamespace, identifier)
	}

	return nil
}

// loadSeries returns the series with its points and registry, or nil when it is unknown
func (t *Tracker) loadSeries(ctx context.Context, identifier string) (*series.Series, error) {
	if identifier == "" || identifier == ctdf.OrphanSeriesID {
		return nil, nil
	}

	s, err := t.Store.GetSeries(ctx, identifier)
	if errors.Is(err, ctdf.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	points, err := t.Store.PointsForSeries(ctx, identifier)
	if err != nil {
		return nil, err
	}

	s.SetPoints(points)
	s.SetRegistry(t.Registry)

	return s, nil
}

// requireSeries is loadSeries for operations that cannot work on an unknown series
func (t *Tracker) requireSeries(ctx context.Context, identifier string) (*series.Series, error) {
	s, err := t.loadSeries(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ctdf.ErrNotFound
	}

	return s, nil
}

func (t *Tracker) savePoints(ctx context.Context, points []*ctdf.PatternPoint) error {
	if len(points) == 0 {
		return nil
	}

	return t.Store.PutPoints(ctx, points)
}

func (t *Tracker) submit(ctx context.Context, tasks []ctdf.Task) error {
	if len(tasks) == 0 || t.Dispatcher == nil {
		return nil
	}

	if err := t.Dispatcher.Submit(ctx, tasks); err != nil {
		return err
	}

	t.metrics().TasksSubmitted(len(tasks))

	return nil
}
