package mission

import (
	"sort"
	"strconv"
	"time"

	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/series"
)

const defaultODKey = "d"

// Mission is one scheduled train run and its live itinerary
type Mission struct {
	PrimaryIdentifier string `groups:"basic"`
	SeriesID          string `groups:"basic"`

	NominalDate time.Time `groups:"basic"`
	Offset      *int      `groups:"basic"` // minutes after midnight

	// Origin and destination station per weekday ("0" Monday to "6" Sunday), "d" is the default
	ODIDs map[string][2]string `groups:"detailed"`

	Stops []*ctdf.StopRecord `groups:"basic"`

	Delay            float64   `groups:"basic"`
	DelayUpdateLimit time.Time `groups:"internal"`

	Version int64 `groups:"internal"`

	series    *series.Series
	config    *config.Engine
	issueTime time.Time
	tasks     []ctdf.Task
}

func New(identifier string) *Mission {
	return &Mission{
		PrimaryIdentifier: identifier,
		ODIDs:             map[string][2]string{defaultODKey: {}},
	}
}

// Attach binds the mission to its series and tunables for an update cycle.
// A nil series means the mission is an orphan.
func (m *Mission) Attach(s *series.Series, engine *config.Engine) {
	m.series = s
	m.config = engine
	if engine == nil {
		m.config = config.Default()
	}
}

func (m *Mission) Series() *series.Series {
	return m.series
}

// Normalize puts every timestamp back into CET after decoding
func (m *Mission) Normalize() {
	if !m.NominalDate.IsZero() {
		m.NominalDate = ctdf.DateOf(m.NominalDate)
	}
	if !m.DelayUpdateLimit.IsZero() {
		m.DelayUpdateLimit = m.DelayUpdateLimit.In(ctdf.CET)
	}
	if m.ODIDs == nil {
		m.ODIDs = map[string][2]string{defaultODKey: {}}
	}

	for _, stop := range m.Stops {
		for _, t := range []*time.Time{&stop.Arrival, &stop.Departure, &stop.ObservedAt} {
			if !t.IsZero() {
				*t = t.In(ctdf.CET)
			}
		}
	}
}

func (m *Mission) Code() ctdf.MissionCode {
	code, _ := ctdf.ParseMissionID(m.PrimaryIdentifier)
	return code
}

func (m *Mission) Identifier() string {
	return m.PrimaryIdentifier
}

func (m *Mission) Up() bool {
	return m.Code().Up()
}

func (m *Mission) Direction() ctdf.Direction {
	return m.Code().Direction()
}

func (m *Mission) IsSupplementary() bool {
	return m.Code().IsSupplementary()
}

// DeriveSeriesID is the series the mission number belongs to
func (m *Mission) DeriveSeriesID(international map[int]string) string {
	return m.Code().SeriesID(international)
}

func (m *Mission) StopRecords() []*ctdf.StopRecord {
	return m.Stops
}

// OffsetCET is the absolute offset time on the nominal date
func (m *Mission) OffsetCET() time.Time {
	offset := 0
	if m.Offset != nil {
		offset = *m.Offset
	}

	return ctdf.AtMinutes(m.NominalDate, offset)
}

// SetOffsetCET stores the rounded offset and moves the nominal date along with it
func (m *Mission) SetOffsetCET(t time.Time) {
	rounded := RoundMissionOffset(t)
	offset := ctdf.MinutesOfDay(rounded)

	m.NominalDate = ctdf.DateOf(rounded)
	m.Offset = &offset
}

func (m *Mission) SetOffsetMinutes(minutes int) {
	offset := ((minutes % 1440) + 1440) % 1440
	m.Offset = &offset
}

// ShiftOffset moves the offset by delta minutes and rounds the result
func (m *Mission) ShiftOffset(delta int) {
	if m.Offset == nil {
		return
	}

	m.SetOffsetMinutes(roundOffsetMinutes(*m.Offset + delta))
}

func (m *Mission) CatalogEntry() (ctdf.Direction, series.CatalogEntry, bool) {
	if m.Offset == nil {
		return ctdf.DirectionDown, series.CatalogEntry{}, false
	}

	return m.Direction(), series.CatalogEntry{Offset: *m.Offset, Number: m.Code().Number}, true
}

// PatternMinutesAtStop is the departure of a stop in minutes after the offset,
// wrapped into one day
func (m *Mission) PatternMinutesAtStop(stop *ctdf.StopRecord) int {
	seconds := int(stop.Departure.Sub(m.OffsetCET()).Seconds())
	elapsed := seconds / 60
	if seconds < 0 && seconds%60 != 0 {
		elapsed--
	}

	return ((elapsed % 1440) + 1440) % 1440
}

func (m *Mission) weekdayKey() string {
	if m.NominalDate.IsZero() {
		return defaultODKey
	}

	return strconv.Itoa(ctdf.ScheduleWeekday(m.NominalDate))
}

// ODIDsForWeekday returns origin and destination for a weekday key, falling back to the default
func (m *Mission) ODIDsForWeekday(key string) (string, string) {
	if ids, exists := m.ODIDs[key]; exists {
		return ids[0], ids[1]
	}

	ids := m.ODIDs[defaultODKey]
	return ids[0], ids[1]
}

func (m *Mission) CurrentODIDs() (string, string) {
	return m.ODIDsForWeekday(m.weekdayKey())
}

func (m *Mission) OriginID() string {
	origin, _ := m.CurrentODIDs()
	return origin
}

func (m *Mission) DestinationID() string {
	_, destination := m.CurrentODIDs()
	return destination
}

func (m *Mission) SetODIDs(origin string, destination string) {
	if m.ODIDs == nil {
		m.ODIDs = map[string][2]string{defaultODKey: {}}
	}

	m.ODIDs[m.weekdayKey()] = [2]string{origin, destination}
}

func (m *Mission) SetOriginID(origin string) {
	m.SetODIDs(origin, m.DestinationID())
}

func (m *Mission) SetDestinationID(destination string) {
	m.SetODIDs(m.OriginID(), destination)
}

// OptimizeODIDs makes the most common pair of the week the default when it
// occurs more than once and lists only the exceptions
func (m *Mission) OptimizeODIDs() {
	var week [7][2]string
	counts := map[[2]string]int{}
	for day := 0; day < 7; day++ {
		origin, destination := m.ODIDsForWeekday(strconv.Itoa(day))
		week[day] = [2]string{origin, destination}
		counts[week[day]]++
	}

	var best [2]string
	bestCount := 0
	for day := 0; day < 7; day++ {
		if count := counts[week[day]]; count > bestCount {
			best, bestCount = week[day], count
		}
	}

	optimized := map[string][2]string{}
	if bestCount > 1 {
		optimized[defaultODKey] = best
	} else {
		optimized[defaultODKey] = m.ODIDs[defaultODKey]
	}

	for day := 0; day < 7; day++ {
		if bestCount > 1 && week[day] == best {
			continue
		}
		optimized[strconv.Itoa(day)] = week[day]
	}

	m.ODIDs = optimized
}

func (m *Mission) IndexForStop(stop *ctdf.StopRecord) (int, bool) {
	for i, existing := range m.Stops {
		if existing.StationID == stop.StationID {
			return i, true
		}
	}

	return 0, false
}

// NextStopIndex is the first stop the train has not yet left at now
func (m *Mission) NextStopIndex(now time.Time) (int, bool) {
	for i, stop := range m.Stops {
		if now.Before(stop.EstimatedDeparture()) {
			return i, true
		}
	}

	return 0, false
}

func (m *Mission) SortStops() {
	sort.SliceStable(m.Stops, func(i, j int) bool {
		return m.Stops[i].Departure.Before(m.Stops[j].Departure)
	})
}

// EstimatedArrival is the expected arrival at the last stop
func (m *Mission) EstimatedArrival() time.Time {
	if len(m.Stops) == 0 {
		return time.Time{}
	}

	last := m.Stops[len(m.Stops)-1]
	arrival := last.Arrival
	if arrival.IsZero() {
		arrival = last.Departure
	}

	return arrival.Add(minutes(last.DelayDeparture))
}

// StatusAt derives the mission status and current delay at now
func (m *Mission) StatusAt(now time.Time) (ctdf.MissionStatus, float64) {
	if len(m.Stops) == 0 {
		return ctdf.MissionStatusInactive, 0
	}

	if now.After(m.EstimatedArrival()) {
		return ctdf.MissionStatusArrived, m.Stops[len(m.Stops)-1].DelayDeparture
	}

	index, exists := m.NextStopIndex(now)
	if !exists {
		return ctdf.MissionStatusArrived, m.Stops[len(m.Stops)-1].DelayDeparture
	}

	stop := m.Stops[index]
	switch {
	case stop.Status == ctdf.StopStatusCanceled:
		return ctdf.MissionStatusCanceled, 0
	case index == 0 && stop.Status == ctdf.StopStatusAnnounced:
		return ctdf.MissionStatusAnnounced, stop.DelayDeparture
	case index == 0:
		return ctdf.MissionStatusInactive, 0
	}

	return ctdf.MissionStatusRunning, stop.DelayDeparture
}

// TakeTasks returns the notifications collected during the last cycle
func (m *Mission) TakeTasks() []ctdf.Task {
	tasks := m.tasks
	m.tasks = nil

	return tasks
}

// RoundMissionOffset snaps times within two minutes of the hour or half hour onto it
func RoundMissionOffset(t time.Time) time.Time {
	local := t.In(ctdf.CET)
	date := ctdf.DateOf(local)
	minutesOfDay := local.Hour()*60 + local.Minute()

	return ctdf.AtMinutes(date, roundOffsetMinutes(minutesOfDay))
}

func roundOffsetMinutes(minutesOfDay int) int {
	minute := ((minutesOfDay % 60) + 60) % 60

	switch {
	case minute >= 58:
		return minutesOfDay + 60 - minute
	case minute >= 1 && minute <= 2:
		return minutesOfDay - minute
	case minute >= 28 && minute <= 32:
		return minutesOfDay + 30 - minute
	}

	return minutesOfDay
}

func minutes(value float64) time.Duration {
	return time.Duration(value * float64(time.Minute))
}
