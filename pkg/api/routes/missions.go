package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
)

type MissionTracker interface {
	HandleStop(ctx context.Context, stop *ctdf.StopRecord) (mission.Result, error)
	HandleDepartures(ctx context.Context, stops []*ctdf.StopRecord) error
	HandleCheck(ctx context.Context, missionID string) error
	Mission(ctx context.Context, identifier string) (*mission.Mission, error)
}

func MissionsRouter(router fiber.Router, missionTracker MissionTracker, now func() time.Time) {
	router.Post("/stops", func(c *fiber.Ctx) error {
		return postStops(c, missionTracker)
	})
	router.Get("/:identifier", func(c *fiber.Ctx) error {
		return getMission(c, missionTracker, now)
	})
	router.Post("/:identifier/check", func(c *fiber.Ctx) error {
		return postCheck(c, missionTracker)
	})
}

// postStops takes one compact stop record or a list of them
func postStops(c *fiber.Ctx, missionTracker MissionTracker) error {
	body := bytes.TrimSpace(c.Body())

	if len(body) > 0 && body[0] == '[' {
		var stops []*ctdf.StopRecord
		if err := json.Unmarshal(body, &stops); err != nil {
			return badRequest(c, err.Error())
		}

		if err := missionTracker.HandleDepartures(c.UserContext(), stops); err != nil {
			return sendError(c, err)
		}

		return c.JSON(fiber.Map{
			"stops": len(stops),
		})
	}

	var stop ctdf.StopRecord
	if err := json.Unmarshal(body, &stop); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := missionTracker.HandleStop(c.UserContext(), &stop)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"outcome":         result.Outcome.String(),
		"catalog_changed": result.CatalogChanged,
	})
}

func getMission(c *fiber.Ctx, missionTracker MissionTracker, now func() time.Time) error {
	m, err := missionTracker.Mission(c.UserContext(), c.Params("identifier"))
	if err != nil {
		return sendError(c, err)
	}

	groups := []string{"basic"}
	if c.QueryBool("detailed", false) {
		groups = append(groups, "detailed")
	}

	missionReduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, m)
	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce Mission",
		})
	}

	status, delay := m.StatusAt(now().In(ctdf.CET))

	return c.JSON(fiber.Map{
		"mission": missionReduced,
		"status":  status.String(),
		"delay":   delay,
	})
}

func postCheck(c *fiber.Ctx, missionTracker MissionTracker) error {
	if err := missionTracker.HandleCheck(c.UserContext(), c.Params("identifier")); err != nil {
		return sendError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
