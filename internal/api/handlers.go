package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/store"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/version"
)

type rootResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type listResponse struct {
	Tasks []tasks.Task `json:"tasks"`
}

// RunResponse acknowledges a background run.
type RunResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, rootResponse{
		Name:        "Skybit API",
		Version:     version.Version,
		Description: "API for managing Skybit agents and tasks",
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// withNextRun fills in the authoritative next run from the scheduler.
func (s *Server) withNextRun(t tasks.Task) tasks.Task {
	t.NextRun = nil
	if t.Active() {
		t.NextRun = s.scheduler.NextRun(t.ID)
	}
	return t
}

func notFound(id string) *echo.HTTPError {
	return detailf(http.StatusNotFound, "Task %s not found", id)
}

// lookupError turns a registry error into an HTTP error.
func lookupError(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(id)
	}
	return err
}

func (s *Server) listTasks(c echo.Context) error {
	list := s.store.List()
	for i := range list {
		list[i] = s.withNextRun(list[i])
	}
	return c.JSON(http.StatusOK, listResponse{Tasks: list})
}

func (s *Server) getTask(c echo.Context) error {
	id := c.Param("id")
	task, err := s.store.Get(id)
	if err != nil {
		return lookupError(id, err)
	}
	return c.JSON(http.StatusOK, s.withNextRun(task))
}

func (s *Server) createTask(c echo.Context) error {
	var req tasks.CreateRequest
	if err := c.Bind(&req); err != nil {
		return detailf(http.StatusBadRequest, "invalid request body: %v", err)
	}

	task, err := req.Task(s.now())
	if err != nil {
		return detailf(http.StatusBadRequest, "%v", err)
	}

	created, err := s.store.Create(task)
	if errors.Is(err, store.ErrConflict) {
		return detailf(http.StatusConflict, "Task with ID %s already exists", task.ID)
	}
	if err != nil {
		return fmt.Errorf("error creating task: %w", err)
	}

	if created.Active() {
		if err := s.scheduler.Schedule(created); err != nil {
			if delErr := s.store.Delete(created.ID); delErr != nil {
				s.logger.Error("failed to roll back task", delErr, logger.Field{Key: "task_id", Value: created.ID})
			}
			return detailf(http.StatusInternalServerError, "Failed to schedule task %s: %v", created.ID, err)
		}
	}

	s.logger.InfoCtx(c.Request().Context(), "task created",
		logger.Field{Key: "task_id", Value: created.ID},
		logger.Field{Key: "schedule", Value: created.ScheduleDescription()})
	return c.JSON(http.StatusCreated, s.withNextRun(created))
}

func (s *Server) updateTask(c echo.Context) error {
	id := c.Param("id")

	var req tasks.UpdateRequest
	if err := c.Bind(&req); err != nil {
		return detailf(http.StatusBadRequest, "invalid request body: %v", err)
	}

	prev, err := s.store.Get(id)
	if err != nil {
		return lookupError(id, err)
	}

	updated, err := s.store.Update(id, func(t *tasks.Task) error {
		return req.Apply(t, s.now())
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		if statusFor(err) == http.StatusBadRequest {
			return detailf(http.StatusBadRequest, "%v", err)
		}
		return fmt.Errorf("error updating task %s: %w", id, err)
	}

	if err := s.syncSchedule(updated); err != nil {
		s.restore(prev)
		return detailf(http.StatusInternalServerError, "Failed to reschedule task %s: %v", id, err)
	}
	return c.JSON(http.StatusOK, s.withNextRun(updated))
}

// restore puts back the definition of prev after a failed reschedule.
// Run state recorded in the meantime is kept. The scheduler entry is
// untouched by a failed Schedule, so it already matches prev.
func (s *Server) restore(prev tasks.Task) {
	_, err := s.store.Update(prev.ID, func(t *tasks.Task) error {
		restored := prev.Clone()
		restored.LastRun = t.LastRun
		restored.LastStatus = t.LastStatus
		restored.LastResult = t.LastResult
		restored.LastError = t.LastError
		restored.Steps = t.Steps
		*t = restored
		return nil
	})
	if err != nil {
		s.logger.Error("failed to roll back task", err, logger.Field{Key: "task_id", Value: prev.ID})
	}
}

// syncSchedule schedules active tasks and unschedules inactive ones.
func (s *Server) syncSchedule(t tasks.Task) error {
	if t.Active() {
		return s.scheduler.Schedule(t)
	}
	s.scheduler.Unschedule(t.ID)
	return nil
}

func (s *Server) deleteTask(c echo.Context) error {
	id := c.Param("id")
	if err := s.store.Delete(id); err != nil {
		return lookupError(id, err)
	}
	s.scheduler.Unschedule(id)

	s.logger.InfoCtx(c.Request().Context(), "task deleted", logger.Field{Key: "task_id", Value: id})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) runTask(c echo.Context) error {
	id := c.Param("id")
	if err := s.dispatcher.Dispatch(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return detailf(statusFor(err), "Error running task %s: %v", id, err)
	}

	return c.JSON(http.StatusOK, RunResponse{
		TaskID:  id,
		Status:  "success",
		Message: fmt.Sprintf("Task %s execution started", id),
	})
}

func (s *Server) enableTask(c echo.Context) error {
	return s.setEnabled(c, true)
}

func (s *Server) disableTask(c echo.Context) error {
	return s.setEnabled(c, false)
}

func (s *Server) setEnabled(c echo.Context, enabled bool) error {
	id := c.Param("id")
	prev, err := s.store.Get(id)
	if err != nil {
		return lookupError(id, err)
	}

	updated, err := s.store.Update(id, func(t *tasks.Task) error {
		t.Schedule = t.Schedule.WithEnabled(enabled)
		t.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return lookupError(id, err)
	}

	if err := s.syncSchedule(updated); err != nil {
		s.restore(prev)
		return detailf(http.StatusInternalServerError, "Failed to schedule task %s: %v", id, err)
	}
	return c.JSON(http.StatusOK, s.withNextRun(updated))
}

func (s *Server) taskSteps(c echo.Context) error {
	id := c.Param("id")
	task, err := s.store.Get(id)
	if err != nil {
		return lookupError(id, err)
	}

	steps := task.Steps
	if steps == nil {
		steps = []tasks.Step{}
	}
	return c.JSON(http.StatusOK, steps)
}
