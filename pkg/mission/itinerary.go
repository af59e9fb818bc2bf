package mission

import (
	"time"

	"github.com/travigo/railtracker/pkg/ctdf"
)

func (m *Mission) createStopFromPoint(point *ctdf.PatternPoint) *ctdf.StopRecord {
	direction := m.Direction()
	arrival, departure := point.Times(direction)
	offset := m.OffsetCET()

	return &ctdf.StopRecord{
		StationID: point.StationID,
		MissionID: m.PrimaryIdentifier,
		Status:    ctdf.StopStatusPlanned,
		Arrival:   offset.Add(time.Duration(arrival) * time.Minute),
		Departure: offset.Add(time.Duration(departure) * time.Minute),
		Platform:  point.PlatformString(direction),
	}
}

// Activate regenerates the itinerary for the day of now from the pattern points
func (m *Mission) Activate(now time.Time) {
	if m.Offset == nil {
		m.SetOffsetMinutes(0)
	}

	m.NominalDate = ctdf.DateOf(now)
	m.Delay = 0
	m.DelayUpdateLimit = time.Time{}
	m.Stops = nil

	if m.series == nil || m.DestinationID() == "" {
		return
	}

	m.awakeStops()
	m.CheckAnnouncements(now)
}

func (m *Mission) awakeStops() {
	origin, destination := m.CurrentODIDs()

	for _, point := range m.series.PointsInRange(origin, destination) {
		m.Stops = append(m.Stops, m.createStopFromPoint(point))
	}

	if len(m.Stops) == 0 {
		return
	}

	last := m.Stops[len(m.Stops)-1]
	last.Status = ctdf.StopStatusFinalDestination

	destinationName := m.stationName(last.StationID)
	for _, stop := range m.Stops {
		stop.Destination = destinationName
	}
}

// AnteriorStops inserts an announced stop the itinerary does not have yet, with
// planned stops for the points between it and the current origin. Returns true
// when the mission got its offset from this stop and has to join the catalog.
func (m *Mission) AnteriorStops(newStop *ctdf.StopRecord) bool {
	missionLogger := m.logger()

	if m.NominalDate.IsZero() && !newStop.Departure.IsZero() {
		m.NominalDate = ctdf.DateOf(newStop.Departure)
	}

	foundIndex, found := 0, false
	if m.series != nil {
		foundIndex, found = m.series.IndexForStation(newStop.StationID)
	}

	if !found {
		missionLogger.Warn().Str("station", newStop.StationID).Str("series", m.SeriesID).Msg("Inserting stop that is not on the series")

		newStop.Arrival = newStop.Departure
		newStop.DelayArrival = newStop.DelayDeparture
		m.Stops = append(m.Stops, newStop)
		m.SortStops()

		return false
	}

	direction := m.Direction()
	foundPoint, _ := m.series.PointAt(foundIndex)
	arrivalMinutes, departureMinutes := foundPoint.Times(direction)

	catalogChanged := false
	if m.Offset == nil {
		m.SetOffsetCET(newStop.Departure.Add(-time.Duration(departureMinutes) * time.Minute))
		_, entry, _ := m.CatalogEntry()
		catalogChanged = m.series.AddMission(direction, entry)
	}

	arrival := m.OffsetCET().Add(time.Duration(arrivalMinutes) * time.Minute)
	if !arrival.After(newStop.Departure) {
		newStop.Arrival = arrival
	} else {
		newStop.Arrival = newStop.Departure
	}

	destination := newStop.Destination
	insertDestination := m.DestinationID() == ""
	if insertDestination {
		destinationIndex, exists := m.series.IndexForStation(destination)
		if !exists {
			destinationIndex = 0
			if direction == ctdf.DirectionUp {
				destinationIndex = m.series.PointCount() - 1
			}
		}

		destinationPoint, _ := m.series.PointAt(destinationIndex)
		m.SetODIDs(destinationPoint.StationID, destinationPoint.StationID)
	}

	existingStationID := ""
	if len(m.Stops) > 0 {
		existingStationID = m.Stops[0].StationID
	}

	limit, hasLimit := m.series.IndexForStation(m.OriginID())
	index := foundIndex
	for {
		m.Stops = append(m.Stops, newStop)

		if !hasLimit {
			break
		}

		if direction == ctdf.DirectionUp {
			index++
			if index > limit {
				break
			}
		} else {
			index--
			if index < limit {
				break
			}
		}

		point, _ := m.series.PointAt(index)
		if point.StationID == existingStationID {
			break
		}

		newStop = m.createStopFromPoint(point)
		newStop.Destination = destination
	}

	m.SortStops()

	if m.Stops[0].StationID == foundPoint.StationID {
		m.SetOriginID(foundPoint.StationID)
	}

	if insertDestination {
		m.Stops[len(m.Stops)-1].Status = ctdf.StopStatusFinalDestination
	}

	return catalogChanged
}

// UpdateDestination extends the itinerary when a stop announces a destination
// beyond the current terminus
func (m *Mission) UpdateDestination(destination string) {
	if m.series == nil {
		return
	}

	direction := m.Direction()

	newIndex, exists := m.series.IndexForStation(destination)
	if !exists {
		newIndex = 0
		if direction == ctdf.DirectionUp {
			newIndex = m.series.PointCount() - 1
		}
	}

	currentIndex, exists := m.series.IndexForStation(m.DestinationID())
	if !exists {
		return
	}

	var extension []*ctdf.StopRecord
	if direction == ctdf.DirectionUp && newIndex > currentIndex {
		for i := currentIndex + 1; i <= newIndex; i++ {
			point, _ := m.series.PointAt(i)
			extension = append(extension, m.createStopFromPoint(point))
		}
	} else if direction == ctdf.DirectionDown && newIndex < currentIndex {
		for i := currentIndex - 1; i >= newIndex; i-- {
			point, _ := m.series.PointAt(i)
			extension = append(extension, m.createStopFromPoint(point))
		}
	}

	if len(extension) == 0 {
		return
	}

	logger := m.logger()
	logger.Info().Str("destination", destination).Int("stops", len(extension)).Msg("Extending itinerary")

	if len(m.Stops) > 0 {
		if last := m.Stops[len(m.Stops)-1]; last.Status == ctdf.StopStatusFinalDestination {
			last.Status = ctdf.StopStatusPlanned
		}
	}

	for _, stop := range extension {
		stop.Destination = destination
	}
	extension[len(extension)-1].Status = ctdf.StopStatusFinalDestination

	m.Stops = append(m.Stops, extension...)
	m.SetDestinationID(extension[len(extension)-1].StationID)
}

// AlterDestination cuts the train short at destination: later stops are
// canceled and earlier ones carry the altered destination
func (m *Mission) AlterDestination(destination string) {
	missionLogger := m.logger()

	if m.series == nil {
		missionLogger.Warn().Str("destination", destination).Msg("Cannot alter destination of orphan mission")
		return
	}

	point, exists := m.series.PointForStation(destination)
	if !exists {
		missionLogger.Warn().Str("destination", destination).Msg("Altered destination not on series")
		return
	}

	passed := false
	for _, stop := range m.Stops {
		switch {
		case passed:
			stop.Status = ctdf.StopStatusCanceled
		case stop.StationID == point.StationID:
			passed = true
			stop.Status = ctdf.StopStatusAltDestination
		default:
			stop.AlteredDestination = destination
		}
	}

	m.issueInstruction(ctdf.TaskInstructionPriority, point.StationID, time.Time{})
}

// ResetDestination undoes AlterDestination
func (m *Mission) ResetDestination() {
	for _, stop := range m.Stops {
		stop.AlteredDestination = ""
		if stop.Status == ctdf.StopStatusCanceled {
			stop.Status = ctdf.StopStatusPlanned
		}
	}

	if len(m.Stops) > 0 {
		m.Stops[len(m.Stops)-1].Status = ctdf.StopStatusFinalDestination
	}
}
