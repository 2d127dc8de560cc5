// Package api serves the task store over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/tasks"
)

// TaskStore is the registry used by the handlers.
type TaskStore interface {
	List() []tasks.Task
	Get(id string) (tasks.Task, error)
	Create(task tasks.Task) (tasks.Task, error)
	Update(id string, fn func(*tasks.Task) error) (tasks.Task, error)
	Delete(id string) error
}

// Scheduler keeps scheduler entries in sync with the registry.
type Scheduler interface {
	Schedule(task tasks.Task) error
	Unschedule(id string) bool
	NextRun(id string) *time.Time
}

// Dispatcher starts background runs.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// Deps are the collaborators of the server.
type Deps struct {
	Store      TaskStore
	Scheduler  Scheduler
	Dispatcher Dispatcher
	Gatherer   prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Logger     *logger.Logger
}

// Server is the task store HTTP server.
type Server struct {
	echo       *echo.Echo
	store      TaskStore
	scheduler  Scheduler
	dispatcher Dispatcher
	logger     *logger.Logger
	now        func() time.Time
}

// New builds the server and registers every route.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		store:      deps.Store,
		scheduler:  deps.Scheduler,
		dispatcher: deps.Dispatcher,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(accessLogger(log))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	e.GET("/", s.root)
	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	g := e.Group("/api/tasks")
	g.GET("", s.listTasks)
	g.POST("", s.createTask)
	g.GET("/:id", s.getTask)
	g.PUT("/:id", s.updateTask)
	g.DELETE("/:id", s.deleteTask)
	g.POST("/:id/run", s.runTask)
	g.POST("/:id/enable", s.enableTask)
	g.POST("/:id/disable", s.disableTask)
	g.GET("/:id/steps", s.taskSteps)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("http server listening", logger.Field{Key: "addr", Value: addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
