package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/ctdf"
)

type observedMission struct {
	stops  []*ctdf.StopRecord
	offset time.Time
}

func (o *observedMission) StopRecords() []*ctdf.StopRecord {
	return o.stops
}

func (o *observedMission) PatternMinutesAtStop(stop *ctdf.StopRecord) int {
	return int(stop.Departure.Sub(o.offset).Minutes())
}

func newVerifier(c *Chart) *Verifier {
	return &Verifier{Chart: c, Config: config.Default()}
}

func TestID(t *testing.T) {
	assert.Equal(t, "nl.030_201308", ID("nl.030", time.Date(2013, 2, 19, 12, 0, 0, 0, ctdf.CET)))
	assert.Equal(t, "nl.030_200953", ID("nl.030", time.Date(2010, 1, 3, 12, 0, 0, 0, ctdf.CET)))
}

func TestVerifyPoint_ShiftsToMode(t *testing.T) {
	c := New("nl.030_201308")
	for i := 0; i < 10; i++ {
		c.AddPattern("nl.ut", ctdf.DirectionUp, 12)
	}
	c.AddPattern("nl.ut", ctdf.DirectionUp, 10)

	point := &ctdf.PatternPoint{StationID: "nl.ut", UpArrival: 9, UpDeparture: 10, DownArrival: 40, DownDeparture: 41}

	assert.True(t, newVerifier(c).VerifyPoint(point))
	assert.Equal(t, 11, point.UpArrival)
	assert.Equal(t, 12, point.UpDeparture)
	assert.Equal(t, 40, point.DownArrival)
	assert.Equal(t, 41, point.DownDeparture)
}

func TestVerifyPoint_TooFewObservations(t *testing.T) {
	c := New("nl.030_201308")
	for i := 0; i < 9; i++ {
		c.AddPattern("nl.ut", ctdf.DirectionUp, 12)
	}

	point := &ctdf.PatternPoint{StationID: "nl.ut", UpArrival: 9, UpDeparture: 10}

	assert.False(t, newVerifier(c).VerifyPoint(point))
	assert.Equal(t, 10, point.UpDeparture)
}

func TestVerifyPoint_LargeJumpIgnored(t *testing.T) {
	c := New("nl.030_201308")
	for i := 0; i < 20; i++ {
		c.AddPattern("nl.ut", ctdf.DirectionDown, 80)
	}

	point := &ctdf.PatternPoint{StationID: "nl.ut", DownArrival: 9, DownDeparture: 10}

	assert.False(t, newVerifier(c).VerifyPoint(point))
	assert.Equal(t, 10, point.DownDeparture)
}

func TestVerifyPoint_Platforms(t *testing.T) {
	c := New("nl.030_201308")
	for i := 0; i < 6; i++ {
		c.AddPlatform("nl.ut", ctdf.DirectionUp, "5")
	}
	for i := 0; i < 4; i++ {
		c.AddPlatform("nl.ut", ctdf.DirectionUp, "7")
	}
	c.AddPlatform("nl.ut", ctdf.DirectionUp, "8A")
	c.AddPlatform("nl.ut", ctdf.DirectionUp, "8a")
	c.AddPlatform("nl.ut", ctdf.DirectionUp, "5-7")
	c.AddPlatform("nl.ut", ctdf.DirectionUp, "")

	point := &ctdf.PatternPoint{StationID: "nl.ut", PlatformsUp: []string{"7"}}

	assert.True(t, newVerifier(c).VerifyPoint(point))
	assert.Equal(t, []string{"5"}, point.PlatformsUp)
	assert.Equal(t, 2, c.Tables["platform_up"]["nl.ut"]["8a"])

	assert.False(t, newVerifier(c).VerifyPoint(point))
}

func TestDelayStats(t *testing.T) {
	c := New("nl.030_201308")

	_, _, ok := c.DelayStats("nl.ut", ctdf.DirectionUp)
	assert.False(t, ok)

	c.AddDelay("nl.ut", ctdf.DirectionUp, 0)
	c.AddDelay("nl.ut", ctdf.DirectionUp, 0)
	c.AddDelay("nl.ut", ctdf.DirectionUp, 4)
	c.AddDelay("nl.ut", ctdf.DirectionUp, 4)

	mean, deviation, ok := c.DelayStats("nl.ut", ctdf.DirectionUp)
	assert.True(t, ok)
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 2.0, deviation)
}

func TestAddMission(t *testing.T) {
	offset := time.Date(2013, 2, 19, 13, 0, 0, 0, ctdf.CET)
	mission := &observedMission{
		offset: offset,
		stops: []*ctdf.StopRecord{
			{StationID: "nl.ah", MissionID: "nl.3044", Departure: offset.Add(2 * time.Minute), DelayDeparture: 1.5, Platform: "4"},
			{StationID: "nl.ed", MissionID: "nl.3044", Departure: offset.Add(14 * time.Minute), Platform: "1-2"},
		},
	}

	c := New("nl.030_201308")
	c.AddMission(mission)

	assert.Equal(t, map[string]int{"2": 1}, c.Tables["pattern_down"]["nl.ah"])
	assert.Equal(t, map[string]int{"1.5": 1}, c.Tables["delay_down"]["nl.ah"])
	assert.Equal(t, map[string]int{"4": 1}, c.Tables["platform_down"]["nl.ah"])
	assert.Equal(t, map[string]int{"14": 1}, c.Tables["pattern_down"]["nl.ed"])
	assert.Nil(t, c.Tables["platform_down"]["nl.ed"])
}
