package tracker

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/travigo/railtracker/pkg/chart"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryStore keeps encoded documents in maps so callers never share state with it
type MemoryStore struct {
	mu sync.Mutex

	missions map[string][]byte
	series   map[string][]byte
	points   map[string][]byte
	charts   map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		missions: map[string][]byte{},
		series:   map[string][]byte{},
		points:   map[string][]byte{},
		charts:   map[string][]byte{},
	}
}

func decodeMission(encoded []byte) (*mission.Mission, error) {
	var m *mission.Mission
	if err := bson.Unmarshal(encoded, &m); err != nil {
		return nil, err
	}
	m.Normalize()

	return m, nil
}

func (s *MemoryStore) GetMission(ctx context.Context, identifier string) (*mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, exists := s.missions[identifier]
	if !exists {
		return nil, ctdf.ErrNotFound
	}

	return decodeMission(encoded)
}

func (s *MemoryStore) PutMission(ctx context.Context, m *mission.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if encoded, exists := s.missions[m.PrimaryIdentifier]; exists {
		stored, err := decodeMission(encoded)
		if err != nil {
			return err
		}
		if stored.Version != m.Version {
			return ctdf.ErrConflict
		}
	} else if m.Version != 0 {
		return ctdf.ErrConflict
	}

	m.Version++

	encoded, err := bson.Marshal(m)
	if err != nil {
		m.Version--
		return err
	}
	s.missions[m.PrimaryIdentifier] = encoded

	return nil
}

func (s *MemoryStore) DeleteMission(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.missions[identifier]; !exists {
		return ctdf.ErrNotFound
	}
	delete(s.missions, identifier)

	return nil
}

func (s *MemoryStore) MissionsForSeries(ctx context.Context, seriesID string) ([]*mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missions []*mission.Mission
	for _, encoded := range s.missions {
		m, err := decodeMission(encoded)
		if err != nil {
			return nil, err
		}
		if m.SeriesID == seriesID {
			missions = append(missions, m)
		}
	}

	sort.Slice(missions, func(i, j int) bool {
		return missions[i].PrimaryIdentifier < missions[j].PrimaryIdentifier
	})

	return missions, nil
}

func (s *MemoryStore) GetSeries(ctx context.Context, identifier string) (*series.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, exists := s.series[identifier]
	if !exists {
		return nil, ctdf.ErrNotFound
	}

	var decoded *series.Series
	if err := bson.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}

	return decoded, nil
}

func (s *MemoryStore) PutSeries(ctx context.Context, decoded *series.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	decoded.Version++

	encoded, err := bson.Marshal(decoded)
	if err != nil {
		return err
	}
	s.series[decoded.PrimaryIdentifier] = encoded

	return nil
}

func (s *MemoryStore) AllSeriesIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identifiers := make([]string, 0, len(s.series))
	for identifier := range s.series {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)

	return identifiers, nil
}

func (s *MemoryStore) PointsForSeries(ctx context.Context, seriesID string) ([]*ctdf.PatternPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var points []*ctdf.PatternPoint
	for _, encoded := range s.points {
		var point *ctdf.PatternPoint
		if err := bson.Unmarshal(encoded, &point); err != nil {
			return nil, err
		}
		if point.SeriesID == seriesID {
			points = append(points, point)
		}
	}

	return points, nil
}

func (s *MemoryStore) PutPoints(ctx context.Context, points []*ctdf.PatternPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, point := range points {
		encoded, err := bson.Marshal(point)
		if err != nil {
			return err
		}
		s.points[point.PrimaryIdentifier] = encoded
	}

	return nil
}

func (s *MemoryStore) DeletePoint(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.points[identifier]; !exists {
		return ctdf.ErrNotFound
	}
	delete(s.points, identifier)

	return nil
}

func (s *MemoryStore) GetChart(ctx context.Context, identifier string) (*chart.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, exists := s.charts[identifier]
	if !exists {
		return nil, ctdf.ErrNotFound
	}

	var c *chart.Chart
	if err := json.Unmarshal(encoded, &c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *MemoryStore) PutChart(ctx context.Context, c *chart.Chart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.charts[c.PrimaryIdentifier] = encoded

	return nil
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string][]byte{}}
}

func (c *MemoryCache) Get(ctx context.Context, namespace string, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, exists := c.entries[namespace+":"+key]
	if !exists {
		return nil, ctdf.ErrNotFound
	}

	return value, nil
}

func (c *MemoryCache) Set(ctx context.Context, namespace string, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[namespace+":"+key] = value

	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, namespace string, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, namespace+":"+key)

	return nil
}

// LocalLocker is a per-key lock for a single process. Timeout bounds the wait.
type LocalLocker struct {
	Timeout time.Duration

	mu   sync.Mutex
	held map[string]chan struct{}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.held == nil {
		l.held = map[string]chan struct{}{}
	}
	slot, exists := l.held[key]
	if !exists {
		slot = make(chan struct{}, 1)
		l.held[key] = slot
	}
	l.mu.Unlock()

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ErrLocked
	}
}

// MemoryDispatcher collects submitted tasks, deduplicated by name
type MemoryDispatcher struct {
	mu    sync.Mutex
	names map[string]bool
	tasks []ctdf.Task
}

func (d *MemoryDispatcher) Submit(ctx context.Context, tasks []ctdf.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.names == nil {
		d.names = map[string]bool{}
	}

	for _, task := range tasks {
		if d.names[task.Name] {
			continue
		}
		d.names[task.Name] = true
		d.tasks = append(d.tasks, task)
	}

	return nil
}

// Take returns and forgets the collected tasks
func (d *MemoryDispatcher) Take() []ctdf.Task {
	d.mu.Lock()
	defer d.mu.Unlock()

	tasks := d.tasks
	d.tasks = nil

	return tasks
}
