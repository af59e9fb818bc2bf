package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railtracker/pkg/chart"
	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
)

type stationRegistry map[string]string

func (r stationRegistry) IDForName(name string) (string, bool) {
	id, exists := r[name]
	return id, exists
}

func (r stationRegistry) NameForID(id string) (string, bool) {
	for name, stationID := range r {
		if stationID == id {
			return name, true
		}
	}

	return "", false
}

func cet(hour int, minute int) time.Time {
	return time.Date(2013, 2, 19, hour, minute, 0, 0, ctdf.CET)
}

func testPoints() []*ctdf.PatternPoint {
	return []*ctdf.PatternPoint{
		{PrimaryIdentifier: "nl.030_nl.ah", SeriesID: "nl.030", StationID: "nl.ah", StationName: "Arnhem", DistanceKm: 95,
			UpArrival: 62, UpDeparture: 62, DownArrival: 0, DownDeparture: 0},
		{PrimaryIdentifier: "nl.030_nl.asd", SeriesID: "nl.030", StationID: "nl.asd", DistanceKm: 0,
			UpArrival: 0, UpDeparture: 0, DownArrival: 62, DownDeparture: 62},
		{PrimaryIdentifier: "nl.030_nl.ut", SeriesID: "nl.030", StationID: "nl.ut", StationName: "Utrecht Centraal", DistanceKm: 36,
			UpArrival: 25, UpDeparture: 27, DownArrival: 35, DownDeparture: 37, PlatformsDown: []string{"5"}},
		{PrimaryIdentifier: "nl.030_nl.klp", SeriesID: "nl.030", StationID: "nl.klp", StationName: "Driebergen-Zeist", DistanceKm: 52,
			UpArrival: 43, UpDeparture: 44, DownArrival: 18, DownDeparture: 19},
		{PrimaryIdentifier: "nl.030_nl.ed", SeriesID: "nl.030", StationID: "nl.ed", StationName: "Ede-Wageningen", DistanceKm: 78,
			UpArrival: 50, UpDeparture: 51, DownArrival: 11, DownDeparture: 12},
	}
}

type fixture struct {
	tracker    *Tracker
	store      *MemoryStore
	dispatcher *MemoryDispatcher
	now        time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	ctx := context.Background()

	store := NewMemoryStore()
	require.NoError(t, store.PutSeries(ctx, series.New("nl.030")))
	require.NoError(t, store.PutPoints(ctx, testPoints()))

	f := &fixture{
		store:      store,
		dispatcher: &MemoryDispatcher{},
		now:        now,
	}
	f.tracker = &Tracker{
		Store:      store,
		Cache:      NewMemoryCache(),
		Locks:      &LocalLocker{Timeout: time.Second},
		Dispatcher: f.dispatcher,
		Registry:   stationRegistry{"Amsterdam Centraal": "nl.asd"},
		Config:     config.Default(),
		Now:        func() time.Time { return f.now },
	}

	return f
}

// storeActiveMission stores a mission from Arnhem to Amsterdam activated on the
// 19th and puts it in the catalog
func (f *fixture) storeActiveMission(t *testing.T, identifier string, offset int) {
	ctx := context.Background()

	s, err := f.tracker.Series(ctx, "nl.030")
	require.NoError(t, err)

	m := mission.New(identifier)
	m.SeriesID = "nl.030"
	m.Attach(s, config.Default())
	m.ODIDs["d"] = [2]string{"nl.ah", "nl.asd"}
	m.SetOffsetMinutes(offset)
	m.Activate(cet(2, 0))
	m.TakeTasks()
	require.NoError(t, f.store.PutMission(ctx, m))

	stored, err := f.store.GetSeries(ctx, "nl.030")
	require.NoError(t, err)
	direction, entry, _ := m.CatalogEntry()
	stored.AddMission(direction, entry)
	require.NoError(t, f.store.PutSeries(ctx, stored))
}

func stationIDs(m *mission.Mission) []string {
	var ids []string
	for _, stop := range m.Stops {
		ids = append(ids, stop.StationID)
	}

	return ids
}

func TestTracker_HandleStopCreatesMission(t *testing.T) {
	f := newFixture(t, cet(13, 10))
	ctx := context.Background()

	result, err := f.tracker.HandleStop(ctx, &ctdf.StopRecord{
		StationID:   "nl.klp",
		MissionID:   "nl.3044",
		Status:      ctdf.StopStatusAnnounced,
		Departure:   cet(13, 19),
		Destination: "Amsterdam Centraal",
	})
	require.NoError(t, err)
	assert.Equal(t, mission.OutcomeFullChange, result.Outcome)
	assert.True(t, result.CatalogChanged)

	stored, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, "nl.030", stored.SeriesID)
	assert.Equal(t, []string{"nl.klp", "nl.ut", "nl.asd"}, stationIDs(stored))
	assert.True(t, cet(13, 18).Equal(stored.Stops[0].Arrival))

	s, err := f.store.GetSeries(ctx, "nl.030")
	require.NoError(t, err)
	assert.Equal(t, []series.CatalogEntry{{Offset: 780, Number: 3044}}, s.Catalog[ctdf.DirectionDown])

	points, err := f.store.PointsForSeries(ctx, "nl.030")
	require.NoError(t, err)
	for _, point := range points {
		if point.StationID == "nl.asd" {
			assert.Equal(t, "Amsterdam Centraal", point.StationName)
		}
	}

	result, err = f.tracker.HandleStop(ctx, &ctdf.StopRecord{
		StationID:   "nl.ah",
		MissionID:   "nl.3044",
		Status:      ctdf.StopStatusAnnounced,
		Departure:   cet(13, 0),
		Destination: "Amsterdam Centraal",
	})
	require.NoError(t, err)
	assert.False(t, result.CatalogChanged)

	stored, err = f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, []string{"nl.ah", "nl.ed", "nl.klp", "nl.ut", "nl.asd"}, stationIDs(stored))
	assert.Equal(t, "nl.ah", stored.OriginID())
}

func TestTracker_HandleStopIncomplete(t *testing.T) {
	f := newFixture(t, cet(13, 10))

	_, err := f.tracker.HandleStop(context.Background(), &ctdf.StopRecord{StationID: "nl.ut"})
	assert.ErrorIs(t, err, ErrIncompleteStop)
}

func TestTracker_HandleStopOrphan(t *testing.T) {
	f := newFixture(t, cet(12, 0))
	ctx := context.Background()

	_, err := f.tracker.HandleStop(ctx, &ctdf.StopRecord{
		StationID: "nl.zl",
		MissionID: "nl.99044",
		Departure: cet(13, 0),
	})
	require.NoError(t, err)

	stored, err := f.store.GetMission(ctx, "nl.99044")
	require.NoError(t, err)
	assert.Equal(t, ctdf.OrphanSeriesID, stored.SeriesID)
	assert.Equal(t, []string{"nl.zl"}, stationIDs(stored))
}

func TestTracker_SmallChangeOnlyCached(t *testing.T) {
	f := newFixture(t, cet(12, 0))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	result, err := f.tracker.HandleStop(ctx, &ctdf.StopRecord{
		StationID:   "nl.ed",
		MissionID:   "nl.3044",
		Departure:   cet(13, 12),
		Destination: "Amsterdam Centraal",
	})
	require.NoError(t, err)
	assert.Equal(t, mission.OutcomeSmallChange, result.Outcome)

	stored, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, ctdf.StopStatusPlanned, stored.Stops[1].Status)
	assert.Equal(t, int64(1), stored.Version)

	current, err := f.tracker.Mission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, ctdf.StopStatusAnnounced, current.Stops[1].Status)

	// a full change after a small one is stored on top of it
	_, err = f.tracker.HandleStop(ctx, &ctdf.StopRecord{
		StationID: "nl.ut",
		MissionID: "nl.3044",
		Departure: cet(13, 37),
		Platform:  "7",
	})
	require.NoError(t, err)

	stored, err = f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, ctdf.StopStatusAnnounced, stored.Stops[1].Status)
	assert.Equal(t, "7", stored.Stops[3].Platform)
}

func TestTracker_SupplementaryCopiesBaseOffset(t *testing.T) {
	f := newFixture(t, cet(13, 10))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	result, err := f.tracker.HandleStop(ctx, &ctdf.StopRecord{
		StationID:   "nl.klp",
		MissionID:   "nl.103044",
		Status:      ctdf.StopStatusAnnounced,
		Departure:   cet(13, 19),
		Destination: "Amsterdam Centraal",
	})
	require.NoError(t, err)
	assert.False(t, result.CatalogChanged)

	stored, err := f.store.GetMission(ctx, "nl.103044")
	require.NoError(t, err)
	assert.Equal(t, 780, *stored.Offset)
	assert.True(t, cet(13, 18).Equal(stored.Stops[0].Arrival))

	s, err := f.store.GetSeries(ctx, "nl.030")
	require.NoError(t, err)
	assert.Equal(t, []series.CatalogEntry{{Offset: 780, Number: 3044}, {Offset: 780, Number: 103044}}, s.Catalog[ctdf.DirectionDown])
}

func TestTracker_HandleDeparturesCancelsReplacedMission(t *testing.T) {
	f := newFixture(t, cet(12, 0))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	err := f.tracker.HandleDepartures(ctx, []*ctdf.StopRecord{{
		StationID:   "nl.klp",
		MissionID:   "nl.103044",
		Status:      ctdf.StopStatusAnnounced,
		Departure:   cet(13, 19),
		Destination: "Amsterdam Centraal",
	}})
	require.NoError(t, err)

	base, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, ctdf.StopStatusCanceled, base.Stops[2].Status)

	_, err = f.store.GetMission(ctx, "nl.103044")
	assert.NoError(t, err)

	var targets []string
	for _, task := range f.dispatcher.Take() {
		targets = append(targets, task.Target)
	}
	assert.Contains(t, targets, "station/nl.ed")
	assert.Contains(t, targets, "station/nl.ut")
}

func TestTracker_HandleCheck(t *testing.T) {
	f := newFixture(t, cet(12, 55))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	require.NoError(t, f.tracker.HandleCheck(ctx, "nl.3044"))

	tasks := f.dispatcher.Take()
	require.Len(t, tasks, 2)
	assert.Equal(t, "station/nl.ah", tasks[0].Target)
	assert.Equal(t, "19_1155_03_check_3044", tasks[0].Name)
	assert.Equal(t, "mission/nl.3044", tasks[1].Target)
	assert.Equal(t, "19_1157_xx_check_3044", tasks[1].Name)

	assert.ErrorIs(t, f.tracker.HandleCheck(ctx, "nl.3046"), ctdf.ErrNotFound)
	assert.NoError(t, f.tracker.HandleTask(ctx, ctdf.Task{Target: "mission/nl.3046", Instruction: ctdf.TaskInstructionCheck}))
	assert.Error(t, f.tracker.HandleTask(ctx, ctdf.Task{Target: "train/nl.3046"}))
}

type recordingAgent struct {
	tasks []ctdf.Task
}

func (r *recordingAgent) RequestStation(ctx context.Context, task ctdf.Task) error {
	r.tasks = append(r.tasks, task)
	return nil
}

func TestTracker_HandleTaskForStation(t *testing.T) {
	f := newFixture(t, cet(12, 55))
	agent := &recordingAgent{}
	f.tracker.Stations = agent

	task := ctdf.Task{Name: "19_1155_03_check_3044", Target: "station/nl.ah", Instruction: ctdf.TaskInstructionCheck}
	require.NoError(t, f.tracker.HandleTask(context.Background(), task))

	assert.Equal(t, []ctdf.Task{task}, agent.tasks)
}

func TestTracker_DeletePointForwardsRevokedStops(t *testing.T) {
	f := newFixture(t, cet(12, 0))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	require.NoError(t, f.tracker.DeletePoint(ctx, "nl.030", "nl.ed"))

	points, err := f.store.PointsForSeries(ctx, "nl.030")
	require.NoError(t, err)
	assert.Len(t, points, 4)

	tasks := f.dispatcher.Take()
	require.Len(t, tasks, 1)
	assert.Equal(t, "mission/nl.3044", tasks[0].Target)
	assert.Equal(t, ctdf.TaskInstructionForward, tasks[0].Instruction)

	require.NoError(t, f.tracker.HandleTask(ctx, tasks[0]))

	stored, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, []string{"nl.ah", "nl.klp", "nl.ut", "nl.asd"}, stationIDs(stored))

	assert.ErrorIs(t, f.tracker.DeletePoint(ctx, "nl.030", "nl.ed"), ctdf.ErrNotFound)
	assert.ErrorIs(t, f.tracker.DeletePoint(ctx, "nl.999", "nl.ed"), ctdf.ErrNotFound)
}

func TestTracker_ActivateNewDay(t *testing.T) {
	sunday := time.Date(2013, 2, 24, 2, 0, 0, 0, ctdf.CET)
	f := newFixture(t, sunday)
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)
	f.storeActiveMission(t, "nl.103044", 14*60)

	require.NoError(t, f.tracker.ActivateAll(ctx))

	_, err := f.store.GetMission(ctx, "nl.103044")
	assert.ErrorIs(t, err, ctdf.ErrNotFound)

	regular, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.True(t, time.Date(2013, 2, 24, 0, 0, 0, 0, ctdf.CET).Equal(regular.NominalDate))
	assert.True(t, time.Date(2013, 2, 24, 13, 0, 0, 0, ctdf.CET).Equal(regular.Stops[0].Departure))

	s, err := f.store.GetSeries(ctx, "nl.030")
	require.NoError(t, err)
	assert.Equal(t, []series.CatalogEntry{{Offset: 780, Number: 3044}}, s.Catalog[ctdf.DirectionDown])

	c, err := f.store.GetChart(ctx, chart.ID("nl.030", sunday))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Tables["pattern_down"]["nl.ut"]["37"])

	tasks := f.dispatcher.Take()
	require.Len(t, tasks, 1)
	assert.Equal(t, "mission/nl.3044", tasks[0].Target)
}

func TestTracker_ChangeOffsets(t *testing.T) {
	f := newFixture(t, cet(2, 0))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	require.NoError(t, f.tracker.ChangeOffsets(ctx, "nl.030", 0, 5))

	stored, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, 13*60-5, *stored.Offset)

	s, err := f.tracker.Series(ctx, "nl.030")
	require.NoError(t, err)
	point, ok := s.PointForStation("nl.ut")
	require.True(t, ok)
	assert.Equal(t, 42, point.DownDeparture)
	assert.Equal(t, []series.CatalogEntry{{Offset: 775, Number: 3044}}, s.Catalog[ctdf.DirectionDown])

	offsets, err := f.tracker.Offsets(ctx, "nl.030")
	require.NoError(t, err)
	assert.Equal(t, 1, offsets.Overview[0][55])
}

func TestTracker_ApplyImport(t *testing.T) {
	f := newFixture(t, cet(2, 0))
	ctx := context.Background()

	err := f.tracker.ApplyImport(ctx, "nl.050", series.Diff{
		Create: []*ctdf.PatternPoint{
			{StationID: "nl.zl", DistanceKm: 0, UpDeparture: 0, DownArrival: 40, DownDeparture: 40},
			{StationID: "nl.asn", DistanceKm: 60, UpArrival: 40, UpDeparture: 40},
		},
	})
	require.NoError(t, err)

	s, err := f.tracker.Series(ctx, "nl.050")
	require.NoError(t, err)
	require.Equal(t, 2, s.PointCount())
	assert.Equal(t, "nl.050_nl.zl", s.Points()[0].PrimaryIdentifier)

	require.NoError(t, f.tracker.ApplyImport(ctx, "nl.050", series.Diff{Delete: []string{"nl.asn"}}))

	s, err = f.tracker.Series(ctx, "nl.050")
	require.NoError(t, err)
	assert.Equal(t, 1, s.PointCount())

	ids, err := f.store.AllSeriesIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nl.030", "nl.050"}, ids)
}

func TestTracker_PlanMission(t *testing.T) {
	f := newFixture(t, cet(12, 0))
	ctx := context.Background()

	created, err := f.tracker.PlanMission(ctx, "nl.3044", 13*60, "nl.ah", "nl.asd")
	require.NoError(t, err)
	assert.True(t, created)

	stored, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, 13*60, *stored.Offset)
	assert.Equal(t, []string{"nl.ah", "nl.ed", "nl.klp", "nl.ut", "nl.asd"}, stationIDs(stored))
	assert.NotEmpty(t, f.dispatcher.Take())

	s, err := f.store.GetSeries(ctx, "nl.030")
	require.NoError(t, err)
	assert.Equal(t, []series.CatalogEntry{{Offset: 780, Number: 3044}}, s.Catalog[ctdf.DirectionDown])

	created, err = f.tracker.PlanMission(ctx, "nl.3044", 14*60, "nl.ah", "nl.asd")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.tracker.PlanMission(ctx, "nl.9944", 14*60, "nl.ah", "nl.asd")
	assert.ErrorIs(t, err, ctdf.ErrNotFound)
}

func TestTracker_Queries(t *testing.T) {
	f := newFixture(t, cet(13, 30))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	current, err := f.tracker.CurrentMissions(ctx, "nl.030", ctdf.DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, []string{"nl.3044"}, current)

	hits, err := f.tracker.RelevantMissions(ctx, "nl.030", "nl.ut", cet(13, 0), time.Hour, nil, "Amsterdam Centraal")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "nl.3044", hits[0].MissionID)
	assert.True(t, cet(13, 37).Equal(hits[0].Departure))

	_, err = f.tracker.RelevantMissions(ctx, "nl.030", "nl.zl", cet(13, 0), time.Hour, nil, "nl.asd")
	assert.ErrorIs(t, err, ctdf.ErrNotFound)

	statistics, err := f.tracker.SeriesStatistics(ctx, "nl.030")
	require.NoError(t, err)
	assert.Equal(t, 1, statistics.Missions)
	assert.Equal(t, map[string]int{"running": 1}, statistics.Status)
	assert.Equal(t, map[int]int{0: 1}, statistics.Delay)

	_, err = f.tracker.CurrentMissions(ctx, "nl.999", ctdf.DirectionUp)
	assert.ErrorIs(t, err, ctdf.ErrNotFound)
}

func TestTracker_ConcurrentUpdatesSerialized(t *testing.T) {
	f := newFixture(t, cet(12, 0))
	ctx := context.Background()
	f.storeActiveMission(t, "nl.3044", 13*60)

	departures := map[string]time.Time{
		"nl.ah":  cet(13, 0),
		"nl.ed":  cet(13, 12),
		"nl.klp": cet(13, 19),
		"nl.ut":  cet(13, 37),
		"nl.asd": cet(14, 2),
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(departures))
	for stationID, departure := range departures {
		stationID, departure := stationID, departure
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tracker.HandleStop(ctx, &ctdf.StopRecord{
				StationID: stationID,
				MissionID: "nl.3044",
				Departure: departure,
				Platform:  "7",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	stored, err := f.store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)
	assert.Equal(t, int64(6), stored.Version)
	for _, stop := range stored.Stops {
		assert.Equal(t, "7", stop.Platform)
	}
}

func TestMemoryStore_VersionConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	m := mission.New("nl.3044")
	require.NoError(t, store.PutMission(ctx, m))

	stale, err := store.GetMission(ctx, "nl.3044")
	require.NoError(t, err)

	require.NoError(t, store.PutMission(ctx, m))
	assert.ErrorIs(t, store.PutMission(ctx, stale), ctdf.ErrConflict)

	fresh := mission.New("nl.3044")
	assert.ErrorIs(t, store.PutMission(ctx, fresh), ctdf.ErrConflict)
}

func TestLocalLocker_Timeout(t *testing.T) {
	locker := &LocalLocker{Timeout: 20 * time.Millisecond}
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "mission:nl.3044")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "mission:nl.3044")
	assert.True(t, errors.Is(err, ErrLocked))

	other, err := locker.Lock(ctx, "mission:nl.3046")
	require.NoError(t, err)
	other()

	unlock()
	again, err := locker.Lock(ctx, "mission:nl.3044")
	require.NoError(t, err)
	again()
}
