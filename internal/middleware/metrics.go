package middleware

import (
	"strconv"
	"time"

	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/labstack/echo/v4"
)

// Metrics records request counts and latency labelled by route template, so /posts/:id
// is one series no matter how many ids are requested.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = 500
				}
			}

			method := c.Request().Method
			metrics.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
