package ctdf

import (
	"time"
	_ "time/tzdata"

	iso8601 "github.com/senseyeio/duration"
)

const YearMonthDayFormat = "2006-01-02"

// LocalTimestampFormat is the zone-less timestamp used on the wire, always read as CET
const LocalTimestampFormat = "2006-01-02T15:04:05"

var CET = loadCET()

func loadCET() *time.Location {
	location, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}

	return location
}

func ParseLocalTimestamp(value string) (time.Time, bool) {
	parsed, err := time.ParseInLocation(LocalTimestampFormat, value, CET)
	if err != nil {
		return time.Time{}, false
	}

	return parsed, true
}

func FormatLocalTimestamp(t time.Time) string {
	return t.In(CET).Format(LocalTimestampFormat)
}

// DateOf returns midnight CET of the operating day t falls on
func DateOf(t time.Time) time.Time {
	local := t.In(CET)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, CET)
}

// AtMinutes returns the instant that is minutes after midnight of date
func AtMinutes(date time.Time, minutes int) time.Time {
	local := date.In(CET)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, minutes, 0, 0, CET)
}

func MinutesOfDay(t time.Time) int {
	local := t.In(CET)
	return local.Hour()*60 + local.Minute()
}

func SecondsOfDay(t time.Time) int {
	local := t.In(CET)
	return local.Hour()*3600 + local.Minute()*60 + local.Second()
}

// MinutesFromISODuration turns strings like PT5M or PT1H2M30S into minutes.
// Unparseable values give 0.
func MinutesFromISODuration(value string) float64 {
	duration, err := iso8601.ParseISO8601(value)
	if err != nil {
		return 0
	}

	return float64(duration.D*24*60+duration.TH*60+duration.TM) + float64(duration.TS)/60
}

// Weekday numbers days Monday=0 to Sunday=6
func Weekday(t time.Time) int {
	return (int(t.In(CET).Weekday()) + 6) % 7
}
