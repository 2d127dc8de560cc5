package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aatumaykin/skybit/internal/logger"
)

// accessLogger writes one log record per request.
func accessLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				{Key: "type", Value: "http"},
				{Key: "remote_ip", Value: v.RemoteIP},
				{Key: "method", Value: v.Method},
				{Key: "uri", Value: v.URI},
				{Key: "status", Value: v.Status},
				{Key: "latency_ms", Value: v.Latency.Milliseconds()},
			}
			if v.URI == "/healthz" || v.URI == "/metrics" {
				log.DebugCtx(c.Request().Context(), "request", fields...)
				return nil
			}
			log.InfoCtx(c.Request().Context(), "request", fields...)
			return nil
		},
	})
}
