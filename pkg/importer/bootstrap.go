package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"gopkg.in/yaml.v3"
)

// Bootstrap describes the stations, series timetables and planned missions
// to load into an empty deployment
type Bootstrap struct {
	Stations []ctdf.Station   `yaml:"stations" validate:"dive"`
	Series   []SeriesSource   `yaml:"series" validate:"dive"`
	Missions []PlannedMission `yaml:"missions" validate:"dive"`
}

type SeriesSource struct {
	ID        string `yaml:"id" validate:"required"`
	Timetable string `yaml:"timetable" validate:"required"`
}

type PlannedMission struct {
	ID          string `yaml:"id" validate:"required"`
	Offset      int    `yaml:"offset" validate:"gte=0,lt=1440"`
	Origin      string `yaml:"origin" validate:"required"`
	Destination string `yaml:"destination" validate:"required"`
}

func LoadBootstrap(path string) (*Bootstrap, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bootstrap Bootstrap
	if err := yaml.Unmarshal(contents, &bootstrap); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&bootstrap); err != nil {
		return nil, err
	}

	return &bootstrap, nil
}

// ApplyBootstrap loads everything the bootstrap lists. Timetable paths are relative to baseDir.
func (i *Importer) ApplyBootstrap(ctx context.Context, bootstrap *Bootstrap, baseDir string) error {
	if i.Stations != nil && len(bootstrap.Stations) > 0 {
		if err := i.Stations.PutStations(ctx, bootstrap.Stations); err != nil {
			return err
		}
		log.Info().Int("stations", len(bootstrap.Stations)).Msg("Loaded stations")
	}

	for _, source := range bootstrap.Series {
		if err := i.importFile(ctx, source.ID, filepath.Join(baseDir, source.Timetable)); err != nil {
			return fmt.Errorf("series %s: %w", source.ID, err)
		}
	}

	for _, planned := range bootstrap.Missions {
		created, err := i.Target.PlanMission(ctx, planned.ID, planned.Offset, planned.Origin, planned.Destination)
		if err != nil {
			return fmt.Errorf("mission %s: %w", planned.ID, err)
		}
		if created {
			log.Info().Str("mission", planned.ID).Int("offset", planned.Offset).Msg("Planned mission")
		}
	}

	return nil
}

func (i *Importer) importFile(ctx context.Context, seriesID string, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	diff, err := i.ImportTimetable(ctx, seriesID, file)
	if err != nil {
		return err
	}

	log.Info().
		Str("series", seriesID).
		Int("created", len(diff.Create)).
		Int("updated", len(diff.Update)).
		Int("deleted", len(diff.Delete)).
		Msg("Imported timetable")

	return nil
}
