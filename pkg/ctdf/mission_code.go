package ctdf

import (
	"fmt"
	"strconv"
	"strings"
)

const OrphanSeriesID = "orphan"

const supplementaryBase = 100000

// MissionCode is the parsed form of a mission id such as nl.3044
type MissionCode struct {
	Country string
	Number  int
}

func ParseMissionID(id string) (MissionCode, bool) {
	country, number, found := strings.Cut(id, ".")
	if !found || country == "" {
		return MissionCode{}, false
	}

	n, err := strconv.Atoi(number)
	if err != nil || n < 0 {
		return MissionCode{}, false
	}

	return MissionCode{Country: country, Number: n}, true
}

// MissionIDFromCode maps a bare train number onto its id, numbers below 500 are international
func MissionIDFromCode(code string) string {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return ""
	}

	if n < 500 {
		return fmt.Sprintf("eu.%d", n)
	}

	return fmt.Sprintf("nl.%d", n)
}

func (m MissionCode) ID() string {
	return fmt.Sprintf("%s.%d", m.Country, m.Number)
}

func (m MissionCode) Up() bool {
	return m.Number%2 == 1
}

func (m MissionCode) Direction() Direction {
	if m.Up() {
		return DirectionUp
	}

	return DirectionDown
}

func (m MissionCode) BaseNumber() int {
	return m.Number % supplementaryBase
}

func (m MissionCode) Supplementary() int {
	return m.Number / supplementaryBase
}

func (m MissionCode) IsSupplementary() bool {
	return m.Supplementary() > 0
}

func (m MissionCode) Base() MissionCode {
	return MissionCode{Country: m.Country, Number: m.BaseNumber()}
}

func (m MissionCode) Ordinal() int {
	if m.Country == "eu" {
		return m.Number % 10
	}

	return m.Number % 100
}

func (m MissionCode) SeriesNumber() int {
	if m.Country == "eu" {
		return m.BaseNumber() / 10
	}

	return m.BaseNumber() / 100
}

// SeriesID derives the series a mission runs in. International trains are looked
// up by the first digits of their number and fall back to eu.000.
func (m MissionCode) SeriesID(international map[int]string) string {
	if m.Country == "eu" {
		if seriesID, exists := international[m.BaseNumber()/10]; exists {
			return seriesID
		}

		return "eu.000"
	}

	return fmt.Sprintf("%s.%03d", m.Country, m.BaseNumber()/100)
}

// ReplacedMissionCode returns the mission a supplementary number stands in for
func ReplacedMissionCode(id string) (string, bool) {
	code, ok := ParseMissionID(id)
	if !ok || !code.IsSupplementary() {
		return "", false
	}

	return code.Base().ID(), true
}
