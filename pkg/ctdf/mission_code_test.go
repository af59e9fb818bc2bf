package ctdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMissionID(t *testing.T) {
	code, ok := ParseMissionID("nl.103044")
	assert.True(t, ok)
	assert.Equal(t, 3044, code.BaseNumber())
	assert.Equal(t, 1, code.Supplementary())
	assert.True(t, code.IsSupplementary())
	assert.False(t, code.Up())
	assert.Equal(t, "nl.3044", code.Base().ID())
	assert.Equal(t, 44, code.Ordinal())
	assert.Equal(t, 30, code.SeriesNumber())
	assert.Equal(t, "nl.030", code.SeriesID(nil))

	_, ok = ParseMissionID("3044")
	assert.False(t, ok)
	_, ok = ParseMissionID("nl.abc")
	assert.False(t, ok)
}

func TestMissionCode_International(t *testing.T) {
	code, _ := ParseMissionID("eu.147")

	assert.True(t, code.Up())
	assert.Equal(t, 7, code.Ordinal())
	assert.Equal(t, 14, code.SeriesNumber())
	assert.Equal(t, "eu.001", code.SeriesID(map[int]string{14: "eu.001"}))
	assert.Equal(t, "eu.000", code.SeriesID(nil))
}

func TestMissionIDFromCode(t *testing.T) {
	assert.Equal(t, "eu.147", MissionIDFromCode("147"))
	assert.Equal(t, "nl.3044", MissionIDFromCode("3044"))
	assert.Equal(t, "", MissionIDFromCode("x"))
}

func TestReplacedMissionCode(t *testing.T) {
	replaced, ok := ReplacedMissionCode("nl.203044")
	assert.True(t, ok)
	assert.Equal(t, "nl.3044", replaced)

	_, ok = ReplacedMissionCode("nl.3044")
	assert.False(t, ok)
}

func TestTaskName(t *testing.T) {
	issue := time.Date(2013, 2, 19, 13, 41, 25, 0, CET)

	name, notBefore := TaskName(issue, "check_3046", false)
	assert.Equal(t, "19_1241_25_check_3046", name)
	assert.Equal(t, issue, notBefore)

	name, notBefore = TaskName(issue, "prio_3046", true)
	assert.Equal(t, "19_1241_xx_prio_3046", name)
	assert.Equal(t, issue.UTC().Truncate(time.Minute), notBefore.Truncate(time.Minute))
}

func TestMinutesFromISODuration(t *testing.T) {
	assert.Equal(t, 5.0, MinutesFromISODuration("PT5M"))
	assert.Equal(t, 62.5, MinutesFromISODuration("PT1H2M30S"))
	assert.Equal(t, 0.0, MinutesFromISODuration("five"))
}

func TestScheduleWeekday(t *testing.T) {
	LoadSpecialDays([]string{"2013-12-25", "garbage"})
	defer LoadSpecialDays(nil)

	assert.Equal(t, 1, ScheduleWeekday(time.Date(2013, 2, 19, 12, 0, 0, 0, CET)))
	assert.Equal(t, 6, ScheduleWeekday(time.Date(2013, 12, 25, 12, 0, 0, 0, CET)))
}

func TestPatternPoint_PlatformString(t *testing.T) {
	point := &PatternPoint{PlatformsUp: []string{"5", "7"}}

	assert.Equal(t, "5-7", point.PlatformString(DirectionUp))
	assert.Equal(t, "-", point.PlatformString(DirectionDown))
	assert.Equal(t, []string{"5", "7"}, ParsePlatformString("5-7"))
	assert.Nil(t, ParsePlatformString("-"))
}
