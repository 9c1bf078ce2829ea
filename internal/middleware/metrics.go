package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/savekit/internal/metrics"
)

// MetricsMiddleware tracks HTTP request metrics, labelled by route
// pattern so path parameters do not create new series.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Response().StatusCode())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route, status).
			Observe(time.Since(start).Seconds())
		return err
	}
}
