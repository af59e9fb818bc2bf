package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/chart"
	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/ctdf"
)

// Member is a mission as the series needs to see it
type Member interface {
	chart.Observed

	Identifier() string
	IsSupplementary() bool
	CatalogEntry() (ctdf.Direction, CatalogEntry, bool)
	ShiftOffset(delta int)
	Activate(now time.Time)
}

// NewDayResult reports what ActivateNewDay changed
type NewDayResult struct {
	Expired   []string
	Activated []Member
	Points    []*ctdf.PatternPoint
}

// ActivateNewDay drains yesterday's missions into the chart, drops supplementary
// missions and regenerates the others for today. On Sundays the chart corrects
// the pattern points.
func (s *Series) ActivateNewDay(now time.Time, members []Member, c *chart.Chart, engine *config.Engine) NewDayResult {
	result := NewDayResult{}

	for _, member := range members {
		c.AddMission(member)

		if member.IsSupplementary() {
			result.Expired = append(result.Expired, member.Identifier())
			continue
		}

		member.Activate(now)
		result.Activated = append(result.Activated, member)
	}

	s.RebuildCatalog(result.Activated)

	if ctdf.Weekday(now) == 6 {
		verifier := &chart.Verifier{Chart: c, Config: engine}
		for _, point := range s.points {
			if verifier.VerifyPoint(point) {
				result.Points = append(result.Points, point)
			}
		}
	}

	log.Info().
		Str("series", s.PrimaryIdentifier).
		Int("activated", len(result.Activated)).
		Int("expired", len(result.Expired)).
		Int("points", len(result.Points)).
		Msg("Activated new day")

	return result
}

// ChangeOffsets moves every point by the delta of its direction and moves the
// missions the opposite way so absolute times stay put
func (s *Series) ChangeOffsets(deltaUp int, deltaDown int, members []Member) {
	for _, point := range s.points {
		point.UpArrival += deltaUp
		point.UpDeparture += deltaUp
		point.DownArrival += deltaDown
		point.DownDeparture += deltaDown
		s.markDirty(point)
	}

	for _, member := range members {
		direction, _, ok := member.CatalogEntry()
		if !ok {
			continue
		}

		delta := deltaDown
		if direction == ctdf.DirectionUp {
			delta = deltaUp
		}

		if delta != 0 {
			member.ShiftOffset(-delta)
		}
	}

	s.RebuildCatalog(members)
}

// DeletePoint removes a station from the route and returns revoked stop records
// for every mission in the catalog, staggered by the update interval
func (s *Series) DeletePoint(stationID string, now time.Time, interval time.Duration) ([]ctdf.Task, *ctdf.PatternPoint, bool) {
	index, exists := s.IndexForStation(stationID)
	if !exists {
		return nil, nil, false
	}

	point := s.points[index]

	var tasks []ctdf.Task
	issueTime := now
	for _, missionID := range s.MissionIDs() {
		issueTime = issueTime.Add(interval)

		code, _ := ctdf.ParseMissionID(missionID)
		name, notBefore := ctdf.TaskName(issueTime, fmt.Sprintf("fwd_%d", code.Number), false)

		tasks = append(tasks, ctdf.Task{
			Name:        name,
			Target:      ctdf.MissionTarget(missionID),
			NotBefore:   notBefore,
			Instruction: ctdf.TaskInstructionForward,
			Sender:      s.PrimaryIdentifier,
			Stop:        ctdf.RevokedStopRecord(missionID, point.StationID),
		})
	}

	s.points = append(s.points[:index:index], s.points[index+1:]...)
	s.pointsIndex = nil
	delete(s.dirtyPoints, point.PrimaryIdentifier)

	return tasks, point, true
}

// Diff is a batch change to the route produced by an import
type Diff struct {
	Create []*ctdf.PatternPoint
	Update []*ctdf.PatternPoint
	Delete []string
}

func (d Diff) Empty() bool {
	return len(d.Create) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// ApplyDiff applies an import to the route. Deletions are by station id.
func (s *Series) ApplyDiff(diff Diff) {
	deleted := map[string]bool{}
	for _, stationID := range diff.Delete {
		deleted[stationID] = true
	}

	updated := map[string]*ctdf.PatternPoint{}
	for _, point := range diff.Update {
		updated[point.StationID] = point
	}

	points := make([]*ctdf.PatternPoint, 0, len(s.points)+len(diff.Create))
	for _, point := range s.points {
		if deleted[point.StationID] {
			continue
		}

		if replacement, exists := updated[point.StationID]; exists {
			point = replacement
		}

		points = append(points, point)
	}

	points = append(points, diff.Create...)

	s.points = points
	s.sortPoints()
}

// OffsetOverview counts the offset minutes of the missions per number%4 group
func (s *Series) OffsetOverview() [4]map[int]int {
	overview := [4]map[int]int{{}, {}, {}, {}}

	for _, catalog := range s.Catalog {
		for _, entry := range catalog {
			overview[entry.Number%4][entry.Offset%60]++
		}
	}

	return overview
}

// NeededOffsetChanges suggests per direction deltas for ChangeOffsets that put
// the most common offsets at the start of the hour in which the route begins
func (s *Series) NeededOffsetChanges() (int, int, bool) {
	if len(s.points) == 0 {
		return 0, 0, false
	}

	first, last := s.points[0], s.points[len(s.points)-1]
	overview := s.OffsetOverview()

	deltas := [2]int{}
	seen := [2]bool{}

	for group, histogram := range overview {
		offset, frequency := 0, 0

		keys := make([]int, 0, len(histogram))
		for minute := range histogram {
			keys = append(keys, minute)
		}
		sort.Ints(keys)

		for _, minute := range keys {
			if histogram[minute] > frequency {
				offset, frequency = minute, histogram[minute]
			}
		}

		direction := ctdf.DirectionFromUp(group%2 == 1)

		departure := offset + last.DownDeparture
		if direction == ctdf.DirectionUp {
			departure = offset + first.UpDeparture
		}
		if departure >= 60 {
			offset -= 60
		}

		if !seen[direction] || offset < deltas[direction] {
			deltas[direction] = offset
			seen[direction] = true
		}
	}

	return deltas[ctdf.DirectionUp], deltas[ctdf.DirectionDown], true
}
