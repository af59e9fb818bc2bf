package ctdf

import (
	"time"

	"github.com/rs/zerolog/log"
)

var SpecialDays = make(map[int]map[string]time.Time) // year date time

// LoadSpecialDays registers official holidays given as YYYY-MM-DD strings
func LoadSpecialDays(dates []string) {
	SpecialDays = make(map[int]map[string]time.Time)

	for _, date := range dates {
		day, err := time.ParseInLocation(YearMonthDayFormat, date, CET)
		if err != nil {
			log.Warn().Str("date", date).Msg("Ignoring malformed official holiday")
			continue
		}

		if SpecialDays[day.Year()] == nil {
			SpecialDays[day.Year()] = map[string]time.Time{}
		}

		SpecialDays[day.Year()][date] = day
	}
}

func IsSpecialDay(t time.Time) bool {
	local := t.In(CET)
	_, exists := SpecialDays[local.Year()][local.Format(YearMonthDayFormat)]

	return exists
}

// ScheduleWeekday is the weekday used for timetabling, holidays run the Sunday service
func ScheduleWeekday(t time.Time) int {
	if IsSpecialDay(t) {
		return 6
	}

	return Weekday(t)
}
