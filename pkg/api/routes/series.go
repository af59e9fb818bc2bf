package routes

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/series"
	"github.com/travigo/railtracker/pkg/tracker"
)

type SeriesTracker interface {
	Series(ctx context.Context, identifier string) (*series.Series, error)
	CurrentMissions(ctx context.Context, seriesID string, direction ctdf.Direction) ([]string, error)
	RelevantMissions(ctx context.Context, seriesID string, origin string, start time.Time, span time.Duration, direction *ctdf.Direction, destination string) ([]series.CatalogHit, error)
	SeriesStatistics(ctx context.Context, seriesID string) (*tracker.Statistics, error)
	Offsets(ctx context.Context, seriesID string) (*tracker.Offsets, error)

	ActivateNewDay(ctx context.Context, seriesID string) error
	ChangeOffsets(ctx context.Context, seriesID string, deltaUp int, deltaDown int) error
	DeletePoint(ctx context.Context, seriesID string, stationID string) error
}

type TimetableImporter interface {
	ImportTimetable(ctx context.Context, seriesID string, reader io.Reader) (series.Diff, error)
}

type seriesRoutes struct {
	tracker  SeriesTracker
	importer TimetableImporter
	now      func() time.Time
}

func SeriesRouter(router fiber.Router, seriesTracker SeriesTracker, importer TimetableImporter, now func() time.Time) {
	routes := &seriesRoutes{tracker: seriesTracker, importer: importer, now: now}

	router.Get("/:identifier", routes.getSeries)
	router.Get("/:identifier/current", routes.getCurrent)
	router.Get("/:identifier/relevant", routes.getRelevant)
	router.Get("/:identifier/statistics", routes.getStatistics)
	router.Get("/:identifier/offsets", routes.getOffsets)

	router.Post("/:identifier/newday", routes.postNewDay)
	router.Post("/:identifier/offsets", routes.postOffsets)
	router.Delete("/:identifier/points/:station", routes.deletePoint)

	if importer != nil {
		router.Put("/:identifier/timetable", routes.putTimetable)
	}
}

func (r *seriesRoutes) getSeries(c *fiber.Ctx) error {
	s, err := r.tracker.Series(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	options := &sheriff.Options{
		Groups: []string{"basic", "detailed"},
	}

	seriesReduced, err := sheriff.Marshal(options, s)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Series",
		})
	}

	pointsReduced, err := sheriff.Marshal(options, s.Points())
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce PatternPoints",
		})
	}

	return c.JSON(fiber.Map{
		"series": seriesReduced,
		"points": pointsReduced,
	})
}

func (r *seriesRoutes) getCurrent(c *fiber.Ctx) error {
	direction, ok := ctdf.ParseDirection(c.Query("direction", "down"))
	if !ok {
		return badRequest(c, "direction must be up or down")
	}

	missions, err := r.tracker.CurrentMissions(c.UserContext(), c.Params("identifier"), direction)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"direction": direction.String(),
		"missions":  missions,
	})
}

// getRelevant takes origin, optional destination and direction, start as a
// local timestamp (default now) and span in minutes (default 60)
func (r *seriesRoutes) getRelevant(c *fiber.Ctx) error {
	origin := c.Query("origin")
	if origin == "" {
		return badRequest(c, "origin is required")
	}

	start := r.now().In(ctdf.CET)
	if value := c.Query("start"); value != "" {
		parsed, ok := ctdf.ParseLocalTimestamp(value)
		if !ok {
			return badRequest(c, "start must be a local timestamp")
		}
		start = parsed
	}

	span := time.Duration(c.QueryInt("span", 60)) * time.Minute

	var direction *ctdf.Direction
	if value := c.Query("direction"); value != "" {
		parsed, ok := ctdf.ParseDirection(value)
		if !ok {
			return badRequest(c, "direction must be up or down")
		}
		direction = &parsed
	}

	hits, err := r.tracker.RelevantMissions(c.UserContext(), c.Params("identifier"), origin, start, span, direction, c.Query("destination"))
	if err != nil {
		return sendError(c, err)
	}

	departures := make([]fiber.Map, 0, len(hits))
	for _, hit := range hits {
		departures = append(departures, fiber.Map{
			"mission":   hit.MissionID,
			"departure": ctdf.FormatLocalTimestamp(hit.Departure),
		})
	}

	return c.JSON(fiber.Map{
		"departures": departures,
	})
}

func (r *seriesRoutes) getStatistics(c *fiber.Ctx) error {
	statistics, err := r.tracker.SeriesStatistics(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(statistics)
}

func (r *seriesRoutes) getOffsets(c *fiber.Ctx) error {
	offsets, err := r.tracker.Offsets(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(offsets)
}

func (r *seriesRoutes) postNewDay(c *fiber.Ctx) error {
	if err := r.tracker.ActivateNewDay(c.UserContext(), c.Params("identifier")); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type offsetChange struct {
	Up   int `json:"up"`
	Down int `json:"down"`
}

func (r *seriesRoutes) postOffsets(c *fiber.Ctx) error {
	var change offsetChange
	if err := c.BodyParser(&change); err != nil {
		return badRequest(c, err.Error())
	}

	if err := r.tracker.ChangeOffsets(c.UserContext(), c.Params("identifier"), change.Up, change.Down); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (r *seriesRoutes) deletePoint(c *fiber.Ctx) error {
	if err := r.tracker.DeletePoint(c.UserContext(), c.Params("identifier"), c.Params("station")); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (r *seriesRoutes) putTimetable(c *fiber.Ctx) error {
	diff, err := r.importer.ImportTimetable(c.UserContext(), c.Params("identifier"), bytes.NewReader(c.Body()))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"created": len(diff.Create),
		"updated": len(diff.Update),
		"deleted": len(diff.Delete),
	})
}
