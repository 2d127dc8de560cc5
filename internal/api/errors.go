package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/schedule"
	"github.com/aatumaykin/skybit/internal/store"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/workers"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Detail string `json:"detail"`
}

func detailf(code int, format string, args ...any) *echo.HTTPError {
	return echo.NewHTTPError(code, fmt.Sprintf(format, args...))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, workers.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, tasks.ErrInvalidTask), errors.Is(err, schedule.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := statusFor(err)
	detail := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		s.logger.ErrorCtx(c.Request().Context(), "request failed", err,
			logger.Field{Key: "uri", Value: c.Request().RequestURI})
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Detail: detail})
	}
	if err != nil {
		s.logger.Error("failed to write error response", err)
	}
}
