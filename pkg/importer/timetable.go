package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gocarina/gocsv"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/series"
	"golang.org/x/exp/slices"
)

// ErrInvalidTimetable wraps every problem with the contents of a timetable
var ErrInvalidTimetable = errors.New("invalid timetable")

// TimetableRow is one line of a series timetable, minutes relative to the mission offset
type TimetableRow struct {
	StationID     string  `csv:"station" validate:"required"`
	StationName   string  `csv:"name"`
	DistanceKm    float64 `csv:"km" validate:"gte=0"`
	UpArrival     int     `csv:"up_arr" validate:"gte=0"`
	UpDeparture   int     `csv:"up_dep" validate:"gtefield=UpArrival"`
	DownArrival   int     `csv:"down_arr" validate:"gte=0"`
	DownDeparture int     `csv:"down_dep" validate:"gtefield=DownArrival"`
	UpPlatforms   string  `csv:"up_platforms"`
	DownPlatforms string  `csv:"down_platforms"`
}

// ParseTimetable reads a timetable CSV into pattern points
func ParseTimetable(reader io.Reader) ([]*ctdf.PatternPoint, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	var rows []*TimetableRow
	if err := gocsv.UnmarshalCSV(csvReader, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTimetable, err)
	}

	validate := validator.New()
	seen := map[string]bool{}

	points := make([]*ctdf.PatternPoint, 0, len(rows))
	for index, row := range rows {
		row.StationID = strings.TrimSpace(row.StationID)

		if err := validate.Struct(row); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInvalidTimetable, index+1, err)
		}
		if seen[row.StationID] {
			return nil, fmt.Errorf("%w: row %d: station %s listed twice", ErrInvalidTimetable, index+1, row.StationID)
		}
		seen[row.StationID] = true

		point := &ctdf.PatternPoint{}
		if err := copier.Copy(point, row); err != nil {
			return nil, err
		}
		point.PlatformsUp = ctdf.ParsePlatformString(row.UpPlatforms)
		point.PlatformsDown = ctdf.ParsePlatformString(row.DownPlatforms)

		points = append(points, point)
	}

	return points, nil
}

func samePoint(a *ctdf.PatternPoint, b *ctdf.PatternPoint) bool {
	return a.StationName == b.StationName &&
		a.DistanceKm == b.DistanceKm &&
		a.UpArrival == b.UpArrival && a.UpDeparture == b.UpDeparture &&
		a.DownArrival == b.DownArrival && a.DownDeparture == b.DownDeparture &&
		slices.Equal(a.PlatformsUp, b.PlatformsUp) &&
		slices.Equal(a.PlatformsDown, b.PlatformsDown)
}

// Diff compares a timetable with the current points of a series. Imported
// points without a name keep the known one.
func Diff(existing []*ctdf.PatternPoint, imported []*ctdf.PatternPoint) series.Diff {
	current := map[string]*ctdf.PatternPoint{}
	for _, point := range existing {
		current[point.StationID] = point
	}

	var diff series.Diff
	seen := map[string]bool{}

	for _, point := range imported {
		seen[point.StationID] = true

		known, exists := current[point.StationID]
		if !exists {
			diff.Create = append(diff.Create, point)
			continue
		}

		if point.StationName == "" {
			point.StationName = known.StationName
		}
		if !samePoint(known, point) {
			diff.Update = append(diff.Update, point)
		}
	}

	for _, point := range existing {
		if !seen[point.StationID] {
			diff.Delete = append(diff.Delete, point.StationID)
		}
	}

	return diff
}

type SeriesTarget interface {
	Series(ctx context.Context, identifier string) (*series.Series, error)
	ApplyImport(ctx context.Context, seriesID string, diff series.Diff) error
	PlanMission(ctx context.Context, identifier string, offset int, origin string, destination string) (bool, error)
}

type StationWriter interface {
	PutStations(ctx context.Context, stations []ctdf.Station) error
}

type Importer struct {
	Target   SeriesTarget
	Stations StationWriter
}

// ImportTimetable replaces the points of a series with a timetable, creating the series when needed
func (i *Importer) ImportTimetable(ctx context.Context, seriesID string, reader io.Reader) (series.Diff, error) {
	imported, err := ParseTimetable(reader)
	if err != nil {
		return series.Diff{}, err
	}

	var existing []*ctdf.PatternPoint
	s, err := i.Target.Series(ctx, seriesID)
	if err == nil {
		existing = s.Points()
	} else if !errors.Is(err, ctdf.ErrNotFound) {
		return series.Diff{}, err
	}

	diff := Diff(existing, imported)
	if diff.Empty() && s != nil {
		log.Info().Str("series", seriesID).Msg("Timetable unchanged")
		return diff, nil
	}

	return diff, i.Target.ApplyImport(ctx, seriesID, diff)
}
