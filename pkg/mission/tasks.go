package mission

import (
	"fmt"
	"time"

	"github.com/travigo/railtracker/pkg/ctdf"
)

func (m *Mission) taskLabel(instruction ctdf.TaskInstruction) string {
	return fmt.Sprintf("%s_%d", instruction, m.Code().Number)
}

// issueInstruction queues an instruction for a station agent one interval after the previous task
func (m *Mission) issueInstruction(instruction ctdf.TaskInstruction, stationID string, expected time.Time) {
	m.issueTime = m.issueTime.Add(m.config.IntervalBetweenUpdateMessages)

	name, notBefore := ctdf.TaskName(m.issueTime, m.taskLabel(instruction), false)
	m.tasks = append(m.tasks, ctdf.Task{
		Name:        name,
		Target:      ctdf.StationTarget(stationID),
		NotBefore:   notBefore,
		Instruction: instruction,
		Sender:      m.PrimaryIdentifier,
		Expected:    expected,
	})
}

// issueSelfTask queues an instruction for the mission itself at a random second of the minute of at
func (m *Mission) issueSelfTask(instruction ctdf.TaskInstruction, at time.Time) {
	name, notBefore := ctdf.TaskName(at, m.taskLabel(instruction), true)
	m.tasks = append(m.tasks, ctdf.Task{
		Name:        name,
		Target:      ctdf.MissionTarget(m.PrimaryIdentifier),
		NotBefore:   notBefore,
		Instruction: instruction,
		Sender:      m.PrimaryIdentifier,
	})
}

// CheckAnnouncements asks the station of the first planned stop departing within
// the check period whether the train is announced, and schedules the mission to
// look again ahead of the stop after that
func (m *Mission) CheckAnnouncements(issueTime time.Time) {
	m.issueTime = issueTime
	reference := issueTime.Add(m.config.PeriodForAnnouncementChecks)

	checked := false
	for _, stop := range m.Stops {
		if stop.Status != ctdf.StopStatusPlanned || !issueTime.Before(stop.Departure) {
			continue
		}

		if !checked && stop.Departure.Before(reference) {
			checked = true
			m.issueInstruction(ctdf.TaskInstructionCheck, stop.StationID, stop.Departure)
			continue
		}

		m.issueSelfTask(ctdf.TaskInstructionCheck, stop.Departure.Add(-m.config.TimePriorToAnnouncement))
		break
	}
}

// UpdateDelay sets the delay at index and carries it along the remaining stops,
// shrinking it by the time the train can make up on each hop. An increasing
// delay only raises later stops, a decreasing one only lowers them.
func (m *Mission) UpdateDelay(index int, delay float64, increasing bool) {
	if index < 0 || index >= len(m.Stops) {
		return
	}

	stop := m.Stops[index]
	stop.DelayDeparture = delay
	m.Delay = delay

	for i := index + 1; i < len(m.Stops); i++ {
		previous := stop
		stop = m.Stops[i]

		riding := stop.Arrival.Sub(previous.Departure).Seconds()
		if riding < 0 {
			riding = 0
		}
		margin := riding * m.config.RidingTimeMargin / 60

		if stop.Status == ctdf.StopStatusPlanned || stop.Status == ctdf.StopStatusAnnounced {
			dwell := stop.Departure.Sub(stop.Arrival)
			if dwell > m.config.MinimumStopTime {
				margin += (dwell - m.config.MinimumStopTime).Minutes()
			}
		}

		delay -= margin
		if delay < 0 {
			if increasing {
				break
			}
			delay = 0
		}

		if increasing && delay > stop.DelayDeparture {
			stop.DelayDeparture = delay
		} else if !increasing && delay < stop.DelayDeparture {
			stop.DelayDeparture = delay
		}
	}
}

// ScheduleMoreUpdates keeps asking the next stop for news until the train is
// expected to have made up its delay or to have arrived
func (m *Mission) ScheduleMoreUpdates(updated *ctdf.StopRecord, now time.Time) {
	if len(m.Stops) == 0 {
		return
	}

	limit := m.DelayUpdateLimit
	if limit.IsZero() || limit.Before(now) {
		limit = now
	}

	recovery := time.Duration(updated.DelayDeparture / m.config.RidingTimeMargin * float64(time.Minute))
	newLimit := updated.EstimatedDeparture().Add(recovery)

	last := m.Stops[len(m.Stops)-1]
	arrival := last.Arrival
	if arrival.IsZero() {
		arrival = last.Departure
	}
	arrival = arrival.Add(minutes(last.DelayDeparture))
	if newLimit.After(arrival) {
		newLimit = arrival
	}
	newLimit = newLimit.Add(-m.config.DelayUpdateInterval)

	for limit.Before(newLimit) {
		limit = limit.Add(m.config.DelayUpdateInterval)

		index, exists := m.NextStopIndex(limit)
		if !exists {
			break
		}

		name, notBefore := ctdf.TaskName(limit, m.taskLabel(ctdf.TaskInstructionPriority), true)
		m.tasks = append(m.tasks, ctdf.Task{
			Name:        name,
			Target:      ctdf.StationTarget(m.Stops[index].StationID),
			NotBefore:   notBefore,
			Instruction: ctdf.TaskInstructionPriority,
			Sender:      m.PrimaryIdentifier,
		})
	}

	m.DelayUpdateLimit = limit
}
