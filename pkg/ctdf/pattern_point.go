package ctdf

import (
	"fmt"
	"strings"
)

// PatternPoint is one scheduled stop of a series. Minute values are offsets
// from the mission offset time.
type PatternPoint struct {
	PrimaryIdentifier string `groups:"basic"`

	SeriesID    string  `groups:"basic"`
	StationID   string  `groups:"basic"`
	StationName string  `groups:"basic"`
	DistanceKm  float64 `groups:"basic"`

	UpArrival     int `groups:"basic"`
	UpDeparture   int `groups:"basic"`
	DownArrival   int `groups:"basic"`
	DownDeparture int `groups:"basic"`

	PlatformsUp   []string `groups:"detailed"`
	PlatformsDown []string `groups:"detailed"`
}

func PatternPointID(seriesID string, stationID string) string {
	return fmt.Sprintf("%s_%s", seriesID, stationID)
}

func (p *PatternPoint) Times(direction Direction) (arrival int, departure int) {
	if direction == DirectionUp {
		return p.UpArrival, p.UpDeparture
	}

	return p.DownArrival, p.DownDeparture
}

func (p *PatternPoint) SetTimes(direction Direction, arrival int, departure int) {
	if direction == DirectionUp {
		p.UpArrival, p.UpDeparture = arrival, departure
	} else {
		p.DownArrival, p.DownDeparture = arrival, departure
	}
}

func (p *PatternPoint) Departure(direction Direction) int {
	_, departure := p.Times(direction)
	return departure
}

func (p *PatternPoint) Arrival(direction Direction) int {
	arrival, _ := p.Times(direction)
	return arrival
}

func (p *PatternPoint) Platforms(direction Direction) []string {
	if direction == DirectionUp {
		return p.PlatformsUp
	}

	return p.PlatformsDown
}

func (p *PatternPoint) SetPlatforms(direction Direction, platforms []string) {
	if direction == DirectionUp {
		p.PlatformsUp = platforms
	} else {
		p.PlatformsDown = platforms
	}
}

// PlatformString joins the platforms with '-', a lone '-' when none are known
func (p *PatternPoint) PlatformString(direction Direction) string {
	platforms := p.Platforms(direction)
	if len(platforms) == 0 {
		return "-"
	}

	return strings.Join(platforms, "-")
}

func ParsePlatformString(value string) []string {
	var platforms []string
	for _, platform := range strings.Split(value, "-") {
		if platform = strings.TrimSpace(platform); platform != "" {
			platforms = append(platforms, platform)
		}
	}

	return platforms
}

func (p *PatternPoint) Shift(delta int) {
	p.UpArrival += delta
	p.UpDeparture += delta
	p.DownArrival += delta
	p.DownDeparture += delta
}
