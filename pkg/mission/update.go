package mission

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
)

type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeNoChange
	OutcomeSmallChange
	OutcomeFullChange
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeNoChange:
		return "no-change"
	case OutcomeSmallChange:
		return "small-change"
	case OutcomeFullChange:
		return "changed"
	}

	return "unknown"
}

// Result is what an update did to the mission. A full change must be persisted,
// a small change only refreshes the cache. CatalogChanged asks for the mission
// to be added to its series catalog.
type Result struct {
	Outcome        Outcome
	CatalogChanged bool
}

func (m *Mission) logger() zerolog.Logger {
	return log.With().Str("mission", m.PrimaryIdentifier).Logger()
}

// UpdateStop merges an observed stop into the itinerary
func (m *Mission) UpdateStop(updated *ctdf.StopRecord, now time.Time) Result {
	if !updated.ObservedAt.IsZero() {
		now = updated.ObservedAt
	}

	missionLogger := m.logger()

	if status, _ := m.StatusAt(now); status == ctdf.MissionStatusArrived {
		missionLogger.Debug().Str("station", updated.StationID).Msg("Ignoring update for arrived mission")
		return Result{Outcome: OutcomeIgnored}
	}

	m.issueTime = now

	result := Result{Outcome: OutcomeNoChange}
	full, small := false, false

	index, found := m.IndexForStop(updated)
	if found {
		existing := m.Stops[index]
		stopLogger := missionLogger.With().Str("station", existing.StationID).Logger()

		if existing.Status != updated.Status {
			stopLogger.Info().Str("from", existing.Status.String()).Str("to", updated.Status.String()).Msg("Change status")

			if updated.Status == ctdf.StopStatusRevoked {
				m.removeStop(index)
				existing = nil
				full = true
			} else {
				switch {
				case existing.Status == ctdf.StopStatusPlanned && updated.Status == ctdf.StopStatusAnnounced:
					small = true
				case existing.Status == ctdf.StopStatusAltDestination && updated.Status == ctdf.StopStatusAnnounced:
					m.ResetDestination()
					full = true
				default:
					if updated.Status == ctdf.StopStatusCanceled {
						m.checkForCanceled(index - 1)
						m.checkForCanceled(index + 1)
					} else if existing.Status == ctdf.StopStatusCanceled {
						m.checkForUncanceled(index - 1)
						m.checkForUncanceled(index + 1)
					}
					full = true
				}

				existing.Status = updated.Status
			}
		}

		if existing != nil {
			if m.mergeStop(index, existing, updated, now, stopLogger) {
				full = true
			}
		}
	} else if updated.Status == ctdf.StopStatusAnnounced || updated.Status == ctdf.StopStatusExtra {
		result.CatalogChanged = m.AnteriorStops(updated)
		full = true
	} else {
		missionLogger.Debug().Str("station", updated.StationID).Str("status", updated.Status.String()).Msg("Ignoring update for unknown stop")
	}

	if full {
		m.SortStops()
		result.Outcome = OutcomeFullChange
	} else if small {
		result.Outcome = OutcomeSmallChange
	}

	return result
}

// mergeStop applies the field changes of an observation to an existing stop
func (m *Mission) mergeStop(index int, existing *ctdf.StopRecord, updated *ctdf.StopRecord, now time.Time, stopLogger zerolog.Logger) bool {
	changed := false

	if existing.DelayDeparture != updated.DelayDeparture {
		stopLogger.Info().Float64("from", existing.DelayDeparture).Float64("to", updated.DelayDeparture).Msg("Change delay")

		nextIndex, hasNext := m.NextStopIndex(now)
		if hasNext && nextIndex == index {
			m.UpdateDelay(index, updated.DelayDeparture, updated.DelayDeparture > existing.DelayDeparture)

			reference := *updated
			if reference.Departure.IsZero() {
				reference.Departure = existing.Departure
			}
			m.ScheduleMoreUpdates(&reference, now)
		} else if hasNext && existing.DelayDeparture == 0 {
			m.issueInstruction(ctdf.TaskInstructionPriority, m.Stops[nextIndex].StationID, time.Time{})
		}

		existing.DelayDeparture = updated.DelayDeparture
		changed = true
	}

	if updated.Platform != "" && existing.Platform != updated.Platform {
		stopLogger.Info().Str("from", existing.Platform).Str("to", updated.Platform).Msg("Change platform")

		existing.Platform = updated.Platform
		existing.PlatformChanged = updated.PlatformChanged
		changed = true
	}

	if updated.Destination != "" && existing.Destination != updated.Destination {
		stopLogger.Info().Str("from", existing.Destination).Str("to", updated.Destination).Msg("Change destination")

		existing.Destination = updated.Destination
		m.UpdateDestination(updated.Destination)
		changed = true
	}

	if existing.AlteredDestination != updated.AlteredDestination {
		stopLogger.Info().Str("from", existing.AlteredDestination).Str("to", updated.AlteredDestination).Msg("Change altered destination")

		if updated.AlteredDestination == "" {
			m.ResetDestination()
		} else {
			m.AlterDestination(updated.AlteredDestination)
		}

		existing.AlteredDestination = updated.AlteredDestination
		changed = true
	}

	if !updated.Departure.IsZero() && !existing.Departure.Equal(updated.Departure) {
		stopLogger.Info().Time("from", existing.Departure).Time("to", updated.Departure).Msg("Change departure")

		if !existing.Arrival.IsZero() {
			existing.Arrival = existing.Arrival.Add(updated.Departure.Sub(existing.Departure))
		}
		existing.Departure = updated.Departure
		changed = true
	}

	return changed
}

// removeStop drops a revoked stop. A revoked terminus truncates the itinerary
// when the train was announced to end there.
func (m *Mission) removeStop(index int) {
	missionLogger := m.logger()

	if index == 0 {
		if len(m.Stops) == 1 || (len(m.Stops) == 2 && m.Stops[1].Status == ctdf.StopStatusFinalDestination) {
			missionLogger.Info().Msg("Removed last stops, mission is empty")
			m.Stops = nil
			m.SetODIDs("", "")
			return
		}

		m.SetOriginID(m.Stops[1].StationID)
		m.Stops = m.Stops[1:]
		return
	}

	stationName := m.stationName(m.Stops[index].StationID)

	isDestination := false
	for i := index - 1; i >= 0; i-- {
		if m.Stops[i].Status == ctdf.StopStatusAnnounced {
			isDestination = m.Stops[i].Destination == stationName
			break
		}
	}

	if isDestination {
		m.Stops = m.Stops[:index+1]
		m.Stops[index].Status = ctdf.StopStatusFinalDestination
		m.SetDestinationID(m.Stops[index].StationID)
		return
	}

	m.Stops = append(m.Stops[:index:index], m.Stops[index+1:]...)
}

func (m *Mission) stationName(stationID string) string {
	if m.series == nil {
		return stationID
	}

	return m.series.StationName(stationID)
}

func (m *Mission) checkForCanceled(index int) {
	if index < 0 || index >= len(m.Stops) {
		return
	}

	if status := m.Stops[index].Status; status == ctdf.StopStatusPlanned || status == ctdf.StopStatusAnnounced {
		m.issueInstruction(ctdf.TaskInstructionPriority, m.Stops[index].StationID, time.Time{})
	}
}

func (m *Mission) checkForUncanceled(index int) {
	if index < 0 || index >= len(m.Stops) {
		return
	}

	if m.Stops[index].Status == ctdf.StopStatusCanceled {
		m.issueInstruction(ctdf.TaskInstructionPriority, m.Stops[index].StationID, time.Time{})
	}
}
