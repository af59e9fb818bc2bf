package series

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/railtracker/pkg/ctdf"
)

func routeSeries() *Series {
	s := New("nl.030")
	s.SetPoints([]*ctdf.PatternPoint{
		{PrimaryIdentifier: "nl.030_nl.ah", StationID: "nl.ah", StationName: "Arnhem", DistanceKm: 95, UpArrival: 62, UpDeparture: 62},
		{PrimaryIdentifier: "nl.030_nl.asd", StationID: "nl.asd", StationName: "Amsterdam Centraal", DistanceKm: 0, DownArrival: 62, DownDeparture: 62},
		{PrimaryIdentifier: "nl.030_nl.ut", StationID: "nl.ut", StationName: "Utrecht Centraal", DistanceKm: 36, UpArrival: 25, UpDeparture: 27, DownArrival: 35, DownDeparture: 37},
		{PrimaryIdentifier: "nl.030_nl.ed", StationID: "nl.ed", DistanceKm: 78, UpArrival: 50, UpDeparture: 51, DownArrival: 11, DownDeparture: 12},
	})

	return s
}

func TestSeries_PointsOrderedByDistance(t *testing.T) {
	s := routeSeries()

	var stations []string
	for _, point := range s.Points() {
		stations = append(stations, point.StationID)
	}

	assert.Equal(t, []string{"nl.asd", "nl.ut", "nl.ed", "nl.ah"}, stations)
}

func TestSeries_IndexForStation(t *testing.T) {
	s := routeSeries()

	index, ok := s.IndexForStation("Utrecht Centraal")
	assert.True(t, ok)
	assert.Equal(t, 1, index)

	index, ok = s.IndexForStation("nl.ah")
	assert.True(t, ok)
	assert.Equal(t, 3, index)

	_, ok = s.IndexForStation("Ede-Wageningen")
	assert.False(t, ok)

	_, ok = s.PointAt(4)
	assert.False(t, ok)
}

type registry map[string]string

func (r registry) IDForName(name string) (string, bool) {
	id, ok := r[name]
	return id, ok
}

func (r registry) NameForID(id string) (string, bool) {
	return "", false
}

func TestSeries_IndexForStationBackfillsName(t *testing.T) {
	s := routeSeries()
	s.SetRegistry(registry{"Ede-Wageningen": "nl.ed", "Zwolle": "nl.zl"})

	index, ok := s.IndexForStation("Ede-Wageningen")
	require.True(t, ok)
	assert.Equal(t, 2, index)
	assert.Equal(t, "Ede-Wageningen", s.Points()[2].StationName)

	dirty := s.TakeDirtyPoints()
	require.Len(t, dirty, 1)
	assert.Equal(t, "nl.030_nl.ed", dirty[0].PrimaryIdentifier)
	assert.Empty(t, s.TakeDirtyPoints())

	_, ok = s.IndexForStation("Zwolle")
	assert.False(t, ok)
}

func TestSeries_PointsInRange(t *testing.T) {
	s := routeSeries()

	forward := s.PointsInRange("nl.ut", "nl.ah")
	require.Len(t, forward, 3)
	assert.Equal(t, "nl.ut", forward[0].StationID)
	assert.Equal(t, "nl.ah", forward[2].StationID)

	backward := s.PointsInRange("nl.ah", "nl.ut")
	require.Len(t, backward, 3)
	assert.Equal(t, "nl.ah", backward[0].StationID)
	assert.Equal(t, "nl.ut", backward[2].StationID)

	assert.Len(t, s.PointsInRange("nl.ut", "nl.ut"), 1)
	assert.Nil(t, s.PointsInRange("nl.ut", "nl.zl"))
}

func TestSeries_AddMission(t *testing.T) {
	s := routeSeries()

	assert.True(t, s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 600, Number: 3041}))
	assert.True(t, s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 540, Number: 3039}))
	assert.True(t, s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 600, Number: 3031}))
	assert.False(t, s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 600, Number: 3041}))

	assert.Equal(t, []CatalogEntry{{540, 3039}, {600, 3031}, {600, 3041}}, s.Catalog[ctdf.DirectionUp])
	assert.Empty(t, s.Catalog[ctdf.DirectionDown])
	assert.Equal(t, []string{"nl.3039", "nl.3031", "nl.3041"}, s.MissionIDs())
}

func TestSeries_CurrentMissionIDs(t *testing.T) {
	s := routeSeries()
	for hour := 6; hour < 24; hour++ {
		s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: hour*60 + 15, Number: 3001 + 2*hour})
		s.AddMission(ctdf.DirectionDown, CatalogEntry{Offset: hour*60 + 45, Number: 3000 + 2*hour})
	}

	now := time.Date(2013, 2, 19, 12, 0, 0, 0, ctdf.CET)

	// up runs 62 minutes, so missions with offsets from 10:28 to 12:00
	assert.Equal(t, []string{"nl.3023"}, s.CurrentMissionIDs(ctdf.DirectionUp, now))
	// down starts at offset+0 and arrives at offset+62
	assert.Equal(t, []string{"nl.3020", "nl.3022"}, s.CurrentMissionIDs(ctdf.DirectionDown, now))

	early := time.Date(2013, 2, 19, 1, 0, 0, 0, ctdf.CET)
	assert.Empty(t, s.CurrentMissionIDs(ctdf.DirectionUp, early))
}

func TestSeries_RangeMatchesBruteForce(t *testing.T) {
	random := rand.New(rand.NewSource(11))

	for round := 0; round < 100; round++ {
		s := routeSeries()
		for i := 0; i < 60; i++ {
			s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: random.Intn(1440), Number: 2*random.Intn(5000) + 1})
		}

		now := time.Date(2013, 2, 19, random.Intn(24), random.Intn(60), random.Intn(60), 0, ctdf.CET)
		got := s.CurrentMissionIDs(ctdf.DirectionUp, now)

		start := now.Add(-time.Duration(62+30) * time.Minute)
		end := now
		minTime := ctdf.DateOf(now.Add(-3 * time.Hour))
		if start.Before(minTime) {
			start = minTime
		}
		if maxTime := minTime.Add(24*time.Hour - time.Second); end.After(maxTime) {
			end = maxTime
		}

		var expected []string
		for _, entry := range s.Catalog[ctdf.DirectionUp] {
			if entry.Offset*60 >= ctdf.SecondsOfDay(start) && entry.Offset*60 <= ctdf.SecondsOfDay(end) {
				expected = append(expected, ctdf.MissionCode{Country: "nl", Number: entry.Number}.ID())
			}
		}

		assert.Equal(t, expected, got, "now %s", now)
	}
}

func TestSeries_RelevantMissions(t *testing.T) {
	s := routeSeries()
	s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 600, Number: 3041})
	s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 630, Number: 3043})
	s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 700, Number: 3045})
	s.AddMission(ctdf.DirectionDown, CatalogEntry{Offset: 600, Number: 3042})

	start := time.Date(2013, 2, 19, 10, 20, 0, 0, ctdf.CET)

	hits, ok := s.RelevantMissions("nl.ut", start, time.Hour, nil, "nl.ah")
	require.True(t, ok)
	assert.Equal(t, []CatalogHit{
		{Departure: time.Date(2013, 2, 19, 10, 27, 0, 0, ctdf.CET), MissionID: "nl.3041"},
		{Departure: time.Date(2013, 2, 19, 10, 57, 0, 0, ctdf.CET), MissionID: "nl.3043"},
	}, hits)

	down := ctdf.DirectionDown
	hits, ok = s.RelevantMissions("Utrecht Centraal", start, time.Hour, &down, "")
	require.True(t, ok)
	assert.Equal(t, []CatalogHit{{Departure: time.Date(2013, 2, 19, 10, 37, 0, 0, ctdf.CET), MissionID: "nl.3042"}}, hits)

	_, ok = s.RelevantMissions("nl.zl", start, time.Hour, nil, "nl.ah")
	assert.False(t, ok)
}

func TestSeries_ApplyDiff(t *testing.T) {
	s := routeSeries()

	s.ApplyDiff(Diff{
		Create: []*ctdf.PatternPoint{{PrimaryIdentifier: "nl.030_nl.klp", StationID: "nl.klp", DistanceKm: 52}},
		Update: []*ctdf.PatternPoint{{PrimaryIdentifier: "nl.030_nl.ut", StationID: "nl.ut", DistanceKm: 36, UpDeparture: 28}},
		Delete: []string{"nl.ed"},
	})

	var stations []string
	for _, point := range s.Points() {
		stations = append(stations, point.StationID)
	}
	assert.Equal(t, []string{"nl.asd", "nl.ut", "nl.klp", "nl.ah"}, stations)
	assert.Equal(t, 28, s.Points()[1].UpDeparture)

	index, ok := s.IndexForStation("nl.klp")
	assert.True(t, ok)
	assert.Equal(t, 2, index)
}

func TestSeries_DeletePoint(t *testing.T) {
	s := routeSeries()
	s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: 600, Number: 3041})
	s.AddMission(ctdf.DirectionDown, CatalogEntry{Offset: 600, Number: 3042})

	now := time.Date(2013, 2, 19, 12, 0, 0, 0, ctdf.CET)
	tasks, point, ok := s.DeletePoint("nl.ut", now, 3*time.Second)

	require.True(t, ok)
	assert.Equal(t, "nl.030_nl.ut", point.PrimaryIdentifier)
	assert.Equal(t, 3, s.PointCount())

	require.Len(t, tasks, 2)
	assert.Equal(t, "mission/nl.3042", tasks[0].Target)
	assert.Equal(t, "19_1100_03_fwd_3042", tasks[0].Name)
	assert.Equal(t, ctdf.StopStatusRevoked, tasks[0].Stop.Status)
	assert.Equal(t, "nl.ut", tasks[0].Stop.StationID)
	assert.Equal(t, "19_1100_06_fwd_3041", tasks[1].Name)

	_, ok = s.IndexForStation("nl.ut")
	assert.False(t, ok)

	_, _, ok = s.DeletePoint("nl.ut", now, 3*time.Second)
	assert.False(t, ok)
}

func TestSeries_NeededOffsetChanges(t *testing.T) {
	s := routeSeries()
	for hour := 6; hour < 10; hour++ {
		s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: hour*60 + 5, Number: 3001 + 4*hour})
		s.AddMission(ctdf.DirectionUp, CatalogEntry{Offset: hour*60 + 35, Number: 3003 + 4*hour})
		s.AddMission(ctdf.DirectionDown, CatalogEntry{Offset: hour*60 + 20, Number: 3000 + 4*hour})
		s.AddMission(ctdf.DirectionDown, CatalogEntry{Offset: hour*60 + 50, Number: 3002 + 4*hour})
	}

	overview := s.OffsetOverview()
	assert.Equal(t, map[int]int{5: 4}, overview[1])
	assert.Equal(t, map[int]int{35: 4}, overview[3])

	deltaUp, deltaDown, ok := s.NeededOffsetChanges()
	require.True(t, ok)
	assert.Equal(t, 5, deltaUp)
	assert.Equal(t, 20, deltaDown)
}
