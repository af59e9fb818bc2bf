package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/importer"
	"github.com/travigo/railtracker/pkg/tracker"
)

func sendError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, ctdf.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, tracker.ErrLocked), errors.Is(err, ctdf.ErrConflict):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, tracker.ErrIncompleteStop), errors.Is(err, importer.ErrInvalidTimetable):
		status = fiber.StatusBadRequest
	}

	c.Status(status)
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	c.Status(fiber.StatusBadRequest)
	return c.JSON(fiber.Map{
		"error": message,
	})
}
