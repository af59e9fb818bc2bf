package chart

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/ctdf"
	"golang.org/x/exp/slices"
)

const (
	tablePattern  = "pattern"
	tableDelay    = "delay"
	tablePlatform = "platform"
)

// Observed is a mission as seen by the chart at the end of its day
type Observed interface {
	StopRecords() []*ctdf.StopRecord
	PatternMinutesAtStop(stop *ctdf.StopRecord) int
}

// Chart collects histograms per pattern point over one statistics window.
// Tables are keyed "<kind>_<direction>", then station id, then the observed value.
type Chart struct {
	PrimaryIdentifier string

	Tables map[string]map[string]map[string]int
}

// ID names the chart of a series for the ISO week of t
func ID(seriesID string, t time.Time) string {
	year, week := t.In(ctdf.CET).ISOWeek()
	return fmt.Sprintf("%s_%04d%02d", seriesID, year, week)
}

func New(identifier string) *Chart {
	return &Chart{
		PrimaryIdentifier: identifier,
		Tables:            map[string]map[string]map[string]int{},
	}
}

func tableName(kind string, direction ctdf.Direction) string {
	return fmt.Sprintf("%s_%s", kind, direction)
}

func (c *Chart) histogram(kind string, direction ctdf.Direction, stationID string) map[string]int {
	if c.Tables == nil {
		return nil
	}

	return c.Tables[tableName(kind, direction)][stationID]
}

func (c *Chart) add(kind string, direction ctdf.Direction, stationID string, value string) {
	if c.Tables == nil {
		c.Tables = map[string]map[string]map[string]int{}
	}

	name := tableName(kind, direction)
	if c.Tables[name] == nil {
		c.Tables[name] = map[string]map[string]int{}
	}
	if c.Tables[name][stationID] == nil {
		c.Tables[name][stationID] = map[string]int{}
	}

	c.Tables[name][stationID][value]++
}

func (c *Chart) AddPattern(stationID string, direction ctdf.Direction, minutes int) {
	c.add(tablePattern, direction, stationID, strconv.Itoa(minutes))
}

func (c *Chart) AddDelay(stationID string, direction ctdf.Direction, delay float64) {
	c.add(tableDelay, direction, stationID, strconv.FormatFloat(delay, 'f', -1, 64))
}

// AddPlatform ignores empty values and combined platforms such as 5-7
func (c *Chart) AddPlatform(stationID string, direction ctdf.Direction, platform string) {
	if platform == "" || strings.Contains(platform, "-") {
		return
	}

	c.add(tablePlatform, direction, stationID, strings.ToLower(platform))
}

func (c *Chart) AddMission(mission Observed) {
	for _, stop := range mission.StopRecords() {
		if stop.StationID == "" || stop.Departure.IsZero() {
			continue
		}

		direction := ctdf.DirectionFromUp(stop.Up())

		c.AddPattern(stop.StationID, direction, mission.PatternMinutesAtStop(stop))
		c.AddDelay(stop.StationID, direction, stop.DelayDeparture)
		c.AddPlatform(stop.StationID, direction, stop.Platform)
	}
}

// Verifier applies a chart to pattern points
type Verifier struct {
	Chart  *Chart
	Config *config.Engine
}

// VerifyPoint corrects the point from the histograms and reports whether it changed
func (v *Verifier) VerifyPoint(point *ctdf.PatternPoint) bool {
	changed := false

	for _, direction := range []ctdf.Direction{ctdf.DirectionDown, ctdf.DirectionUp} {
		if v.verifyPattern(point, direction) {
			changed = true
		}
		if v.verifyPlatforms(point, direction) {
			changed = true
		}
	}

	return changed
}

func (v *Verifier) verifyPattern(point *ctdf.PatternPoint, direction ctdf.Direction) bool {
	histogram := v.Chart.histogram(tablePattern, direction, point.StationID)
	if len(histogram) == 0 {
		return false
	}

	arrival, departure := point.Times(direction)

	value := departure
	mode, count := mostCommon(histogram)
	if count >= v.Config.StatisticsMinimumCount {
		value = mode
	}

	delta := value - departure
	if delta == 0 {
		return false
	}

	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}

	pointLogger := log.With().Str("point", point.PrimaryIdentifier).Str("direction", direction.String()).Logger()

	if magnitude <= v.Config.StatisticsNoiseMinutes {
		return false
	}
	if magnitude >= v.Config.StatisticsLargeJumpMinutes {
		pointLogger.Warn().Int("delta", delta).Int("count", count).Msg("Pattern deviation too large to correct")
		return false
	}

	point.SetTimes(direction, arrival+delta, departure+delta)
	pointLogger.Info().Int("delta", delta).Int("count", count).Msg("Corrected pattern times")

	return true
}

func (v *Verifier) verifyPlatforms(point *ctdf.PatternPoint, direction ctdf.Direction) bool {
	histogram := v.Chart.histogram(tablePlatform, direction, point.StationID)

	total := 0
	for _, count := range histogram {
		total += count
	}
	if total == 0 {
		return false
	}

	var platforms []string
	for platform, count := range histogram {
		if float64(count)/float64(total) > v.Config.PlatformShareThreshold {
			platforms = append(platforms, platform)
		}
	}
	sort.Strings(platforms)

	if slices.Equal(platforms, point.Platforms(direction)) {
		return false
	}

	log.Info().Str("point", point.PrimaryIdentifier).Str("direction", direction.String()).
		Strs("platforms", platforms).
		Msg("Corrected platforms")
	point.SetPlatforms(direction, platforms)

	return true
}

// DelayStats returns mean and standard deviation of the departure delays at a point
func (c *Chart) DelayStats(stationID string, direction ctdf.Direction) (float64, float64, bool) {
	histogram := c.histogram(tableDelay, direction, stationID)

	count := 0
	total := 0.0
	for value, n := range histogram {
		delay, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}

		count += n
		total += float64(n) * delay
	}
	if count == 0 {
		return 0, 0, false
	}

	mean := total / float64(count)

	squares := 0.0
	for value, n := range histogram {
		delay, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}

		squares += float64(n) * (delay - mean) * (delay - mean)
	}

	return mean, math.Sqrt(squares / float64(count)), true
}

// mostCommon picks the highest count, the lowest value wins a tie
func mostCommon(histogram map[string]int) (int, int) {
	bestValue, bestCount := 0, 0
	found := false

	for key, count := range histogram {
		value, err := strconv.Atoi(key)
		if err != nil {
			continue
		}

		if !found || count > bestCount || (count == bestCount && value < bestValue) {
			bestValue, bestCount = value, count
			found = true
		}
	}

	return bestValue, bestCount
}
