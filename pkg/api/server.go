package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/travigo/railtracker/pkg/api/routes"
	"github.com/travigo/railtracker/pkg/http_server"
	"github.com/travigo/railtracker/pkg/tracker"
)

type Options struct {
	Tracker  *tracker.Tracker
	Importer routes.TimetableImporter

	Gatherer   prometheus.Gatherer
	QueueStats http.Handler
	Health     func(ctx context.Context) error
}

func NewServer(options Options) *fiber.App {
	webApp := fiber.New()
	webApp.Use(http_server.NewLogger("/health", "/metrics"))

	now := options.Tracker.Now
	if now == nil {
		now = time.Now
	}

	webApp.Get("/health", func(c *fiber.Ctx) error {
		if options.Health != nil {
			if err := options.Health(c.UserContext()); err != nil {
				c.Status(fiber.StatusInternalServerError)
				return c.SendString(err.Error())
			}
		}

		return c.SendString("OK")
	})

	if options.Gatherer != nil {
		webApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(options.Gatherer, promhttp.HandlerOpts{})))
	}
	if options.QueueStats != nil {
		webApp.Get("/queues/stats", adaptor.HTTPHandler(options.QueueStats))
	}

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	routes.MissionsRouter(group.Group("/missions"), options.Tracker, now)
	routes.SeriesRouter(group.Group("/series"), options.Tracker, options.Importer, now)

	return webApp
}

func SetupServer(listen string, options Options) error {
	return NewServer(options).Listen(listen)
}
