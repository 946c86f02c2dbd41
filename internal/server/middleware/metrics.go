package middleware

import (
	"reflect"
	"strconv"
	"time"

	"github.com/executehouse/limpopo-connect/pkg/util"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsPath  = "/metrics"
	notFoundPath = "/not-found"
)

func isNotFoundHandler(handler echo.HandlerFunc) bool {
	return reflect.ValueOf(handler).Pointer() == reflect.ValueOf(echo.NotFoundHandler).Pointer()
}

// Metrics instruments request durations and serves /metrics.
func Metrics() echo.MiddlewareFunc {
	httpMetrics, err := util.GetHistogramVec("request_duration_seconds", "code", "method", "path")
	if err != nil {
		panic(err)
	}
	promHandler := echo.WrapHandler(promhttp.Handler())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := c.Path()

			if req.RequestURI == metricsPath {
				return promHandler(c)
			}

			// avoid high 404 label cardinality
			if isNotFoundHandler(c.Handler()) {
				path = notFoundPath
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			httpMetrics.WithLabelValues(status, req.Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
