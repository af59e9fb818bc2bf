package http_server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

// NewLogger logs every request with its status and latency. Requests to
// quietPaths that succeed are only logged at debug level.
func NewLogger(quietPaths ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()

		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)

		handlerErr := c.Next()

		msg := "HTTP Request"
		if handlerErr != nil {
			msg = handlerErr.Error()
		}

		code := c.Response().StatusCode()
		if fiberErr, ok := handlerErr.(*fiber.Error); ok {
			code = fiberErr.Code
		} else if handlerErr != nil {
			code = fiber.StatusInternalServerError
		}

		requestLogger := log.With().
			Str("request", requestID).
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", clientIP(c)).
			Dur("latency", time.Since(startTime)).
			Logger()

		var event *zerolog.Event
		switch {
		case code >= fiber.StatusBadRequest && code < fiber.StatusInternalServerError:
			event = requestLogger.Warn()
		case code >= http.StatusInternalServerError:
			event = requestLogger.Error()
		case slices.Contains(quietPaths, c.Path()):
			event = requestLogger.Debug()
		default:
			event = requestLogger.Info()
		}
		event.Msg(msg)

		return handlerErr
	}
}

func clientIP(c *fiber.Ctx) string {
	if ips := c.IPs(); len(ips) > 0 {
		return ips[0]
	}

	return c.IP()
}
