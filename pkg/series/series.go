package series

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"golang.org/x/exp/slices"
)

// StationRegistry resolves station names for points that are only known by id
type StationRegistry interface {
	IDForName(name string) (string, bool)
	NameForID(id string) (string, bool)
}

// CatalogEntry is one mission in the catalog, Offset in minutes after midnight
type CatalogEntry struct {
	Offset int `groups:"basic"`
	Number int `groups:"basic"`
}

func compareEntries(a CatalogEntry, b CatalogEntry) int {
	if a.Offset != b.Offset {
		return a.Offset - b.Offset
	}

	return a.Number - b.Number
}

// Series is a route with its pattern points ordered by km and, per direction,
// the missions sorted by offset time
type Series struct {
	PrimaryIdentifier string `groups:"basic"`
	Type              string `groups:"basic"`

	Catalog [2][]CatalogEntry `groups:"detailed"`

	Version int64 `groups:"internal"`

	points      []*ctdf.PatternPoint
	pointsIndex map[string]int
	registry    StationRegistry
	dirtyPoints map[string]*ctdf.PatternPoint
}

func New(identifier string) *Series {
	return &Series{PrimaryIdentifier: identifier}
}

func (s *Series) Country() string {
	country, _, _ := strings.Cut(s.PrimaryIdentifier, ".")
	return country
}

func (s *Series) SetRegistry(registry StationRegistry) {
	s.registry = registry
}

// SetPoints replaces the route, points are ordered by km
func (s *Series) SetPoints(points []*ctdf.PatternPoint) {
	s.points = points
	s.sortPoints()
}

func (s *Series) sortPoints() {
	sort.SliceStable(s.points, func(i, j int) bool {
		return s.points[i].DistanceKm < s.points[j].DistanceKm
	})
	s.pointsIndex = nil
}

func (s *Series) Points() []*ctdf.PatternPoint {
	return s.points
}

func (s *Series) PointCount() int {
	return len(s.points)
}

func (s *Series) index() map[string]int {
	if s.pointsIndex == nil {
		s.pointsIndex = map[string]int{}
		for i, point := range s.points {
			s.pointsIndex[point.StationID] = i
			if point.StationName != "" {
				s.pointsIndex[point.StationName] = i
			}
		}
	}

	return s.pointsIndex
}

func (s *Series) PointAt(index int) (*ctdf.PatternPoint, bool) {
	if index < 0 || index >= len(s.points) {
		return nil, false
	}

	return s.points[index], true
}

// IndexForStation finds a point by station id or name. Unknown names are looked
// up in the station registry and the name is stored on the matching point.
func (s *Series) IndexForStation(nameOrID string) (int, bool) {
	if nameOrID == "" {
		return 0, false
	}

	if index, exists := s.index()[nameOrID]; exists {
		return index, true
	}

	if s.registry == nil {
		return 0, false
	}

	stationID, exists := s.registry.IDForName(nameOrID)
	if !exists {
		log.Warn().Str("series", s.PrimaryIdentifier).Str("station", nameOrID).Msg("Station not found in registry")
		return 0, false
	}

	index, exists := s.index()[stationID]
	if !exists {
		return 0, false
	}

	point := s.points[index]
	point.StationName = nameOrID
	s.markDirty(point)
	s.pointsIndex = nil

	return index, true
}

func (s *Series) PointForStation(nameOrID string) (*ctdf.PatternPoint, bool) {
	index, exists := s.IndexForStation(nameOrID)
	if !exists {
		return nil, false
	}

	return s.points[index], true
}

// StationName gives the display name of a station on the route
func (s *Series) StationName(stationID string) string {
	if index, exists := s.index()[stationID]; exists && s.points[index].StationName != "" {
		return s.points[index].StationName
	}

	if s.registry != nil {
		if name, exists := s.registry.NameForID(stationID); exists {
			return name
		}
	}

	return stationID
}

// PointsInRange returns the points between two stations inclusive, reversed when
// the first lies further along the route
func (s *Series) PointsInRange(from string, to string) []*ctdf.PatternPoint {
	fromIndex, fromExists := s.IndexForStation(from)
	toIndex, toExists := s.IndexForStation(to)
	if !fromExists || !toExists {
		return nil
	}

	if fromIndex <= toIndex {
		return slices.Clone(s.points[fromIndex : toIndex+1])
	}

	points := slices.Clone(s.points[toIndex : fromIndex+1])
	slices.Reverse(points)

	return points
}

func (s *Series) markDirty(point *ctdf.PatternPoint) {
	if s.dirtyPoints == nil {
		s.dirtyPoints = map[string]*ctdf.PatternPoint{}
	}

	s.dirtyPoints[point.PrimaryIdentifier] = point
}

// TakeDirtyPoints returns the points changed since the last call
func (s *Series) TakeDirtyPoints() []*ctdf.PatternPoint {
	var points []*ctdf.PatternPoint
	for _, point := range s.dirtyPoints {
		points = append(points, point)
	}
	s.dirtyPoints = nil

	sort.Slice(points, func(i, j int) bool {
		return points[i].PrimaryIdentifier < points[j].PrimaryIdentifier
	})

	return points
}

// AddMission inserts a mission into the catalog of its direction, keeping it sorted.
// Returns false when the entry is already present.
func (s *Series) AddMission(direction ctdf.Direction, entry CatalogEntry) bool {
	catalog := s.Catalog[direction]

	index, found := slices.BinarySearchFunc(catalog, entry, compareEntries)
	if found {
		return false
	}

	s.Catalog[direction] = slices.Insert(catalog, index, entry)
	return true
}

func (s *Series) missionID(number int) string {
	return ctdf.MissionCode{Country: s.Country(), Number: number}.ID()
}

// lowerBound is the first catalog position with an offset at or after seconds
func lowerBound(catalog []CatalogEntry, seconds int) int {
	return sort.Search(len(catalog), func(i int) bool {
		return catalog[i].Offset*60 >= seconds
	})
}

// upperBound is the first catalog position with an offset after seconds
func upperBound(catalog []CatalogEntry, seconds int) int {
	return sort.Search(len(catalog), func(i int) bool {
		return catalog[i].Offset*60 > seconds
	})
}

// CurrentMissionIDs lists the missions of a direction that may be on the route now
func (s *Series) CurrentMissionIDs(direction ctdf.Direction, now time.Time) []string {
	if len(s.points) == 0 {
		return nil
	}

	first, last := s.points[0], s.points[len(s.points)-1]

	var start, end time.Time
	if direction == ctdf.DirectionUp {
		start = now.Add(-time.Duration(last.UpArrival+30) * time.Minute)
		end = now.Add(-time.Duration(first.UpDeparture) * time.Minute)
	} else {
		start = now.Add(-time.Duration(first.DownArrival+30) * time.Minute)
		end = now.Add(-time.Duration(last.DownDeparture) * time.Minute)
	}

	minTime := ctdf.DateOf(now.Add(-3 * time.Hour))
	maxTime := minTime.Add(24*time.Hour - time.Second)
	if start.Before(minTime) {
		start = minTime
	}
	if end.After(maxTime) {
		end = maxTime
	}

	catalog := s.Catalog[direction]
	startIndex := lowerBound(catalog, ctdf.SecondsOfDay(start))
	endIndex := upperBound(catalog, ctdf.SecondsOfDay(end))

	var missionIDs []string
	for _, entry := range catalog[startIndex:max(startIndex, endIndex)] {
		missionIDs = append(missionIDs, s.missionID(entry.Number))
	}

	return missionIDs
}

// CatalogHit is a mission departing from the queried origin
type CatalogHit struct {
	Departure time.Time
	MissionID string
}

// RelevantMissions lists missions departing from origin between start and
// start+span. Without a direction it is inferred from the destination.
func (s *Series) RelevantMissions(origin string, start time.Time, span time.Duration, direction *ctdf.Direction, destination string) ([]CatalogHit, bool) {
	originPoint, exists := s.PointForStation(origin)
	if !exists {
		log.Warn().Str("series", s.PrimaryIdentifier).Str("station", origin).Msg("Origin not on series")
		return nil, false
	}

	var travelDirection ctdf.Direction
	if direction != nil {
		travelDirection = *direction
	} else {
		destinationPoint, exists := s.PointForStation(destination)
		if !exists {
			log.Warn().Str("series", s.PrimaryIdentifier).Str("station", destination).Msg("Destination not on series")
			return nil, false
		}

		travelDirection = ctdf.DirectionFromUp(originPoint.UpDeparture < destinationPoint.UpDeparture)
	}

	departure := originPoint.Departure(travelDirection)
	startMinutes := ctdf.MinutesOfDay(start) - departure
	endMinutes := startMinutes + int(span.Minutes())

	startMinutes = max(startMinutes, 0)
	endMinutes = min(endMinutes, 24*60-1)

	catalog := s.Catalog[travelDirection]
	startIndex := lowerBound(catalog, startMinutes*60)
	endIndex := upperBound(catalog, endMinutes*60)

	date := ctdf.DateOf(start)
	hits := []CatalogHit{}
	for _, entry := range catalog[startIndex:max(startIndex, endIndex)] {
		hits = append(hits, CatalogHit{
			Departure: ctdf.AtMinutes(date, entry.Offset+departure),
			MissionID: s.missionID(entry.Number),
		})
	}

	return hits, true
}

func (s *Series) MissionIDs() []string {
	var missionIDs []string
	for _, catalog := range s.Catalog {
		for _, entry := range catalog {
			missionIDs = append(missionIDs, s.missionID(entry.Number))
		}
	}

	return missionIDs
}

// RebuildCatalog replaces the catalog with the given missions
func (s *Series) RebuildCatalog(members []Member) {
	s.Catalog = [2][]CatalogEntry{}

	for _, member := range members {
		if direction, entry, ok := member.CatalogEntry(); ok {
			s.AddMission(direction, entry)
		}
	}
}
