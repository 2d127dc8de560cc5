package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/scheduler"
	"github.com/aatumaykin/skybit/internal/store"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/workers"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, taskID)
	return d.err
}

type testEnv struct {
	server     *Server
	registry   *store.Registry
	scheduler  *scheduler.Scheduler
	dispatcher *fakeDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "discard"})
	require.NoError(t, err)

	reg := store.NewRegistry(t.TempDir(), log)
	sched := scheduler.New(time.UTC, nil, log)
	t.Cleanup(sched.Stop)
	d := &fakeDispatcher{}

	promReg := prometheus.NewRegistry()
	workers.NewMetrics("skybit", promReg)

	return &testEnv{
		server: New(Deps{
			Store:      reg,
			Scheduler:  sched,
			Dispatcher: d,
			Gatherer:   promReg,
			Logger:     log,
		}),
		registry:   reg,
		scheduler:  sched,
		dispatcher: d,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const dailyReport = `{"name":"Daily Report","description":"d","prompt":"Write it","interval_minutes":30}`

func TestRoot(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Skybit API", decode(t, rec)["name"])

	rec = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/tasks", dailyReport)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "daily_report", body["id"])
	assert.Equal(t, "interval", body["schedule_type"])
	assert.Equal(t, float64(30), body["interval_minutes"])
	assert.Equal(t, true, body["enabled"])
	assert.Equal(t, "ubuntu", body["instance_type"])
	assert.Equal(t, "openai", body["model_provider"])
	assert.NotNil(t, body["next_run"])

	assert.NotNil(t, env.scheduler.NextRun("daily_report"))
}

func TestCreateTask_Errors(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "duplicate", body: dailyReport, code: http.StatusConflict},
		{name: "malformed json", body: `{"name":`, code: http.StatusBadRequest},
		{name: "missing prompt", body: `{"name":"x"}`, code: http.StatusBadRequest},
		{name: "zero interval", body: `{"name":"x","prompt":"p","interval_minutes":0}`, code: http.StatusBadRequest},
		{name: "short cron", body: `{"name":"x","prompt":"p","schedule_type":"cron","cron_expression":"* * *"}`, code: http.StatusBadRequest},
		{name: "unschedulable cron", body: `{"name":"y","prompt":"p","schedule_type":"cron","cron_expression":"99 99 * * *"}`, code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/tasks", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["detail"])
		})
	}

	_, err := env.registry.Get("y")
	assert.ErrorIs(t, err, store.ErrNotFound, "failed schedule rolls back the task")
}

func TestListAndGetTasks(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks",
		`{"name":"Weekly","prompt":"p","schedule_type":"cron","cron_expression":"0 0 * * 0","enabled":false}`).Code)

	rec := env.do(t, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Tasks []map[string]any `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, "daily_report", list.Tasks[0]["id"])
	assert.NotNil(t, list.Tasks[0]["next_run"])
	assert.Equal(t, "weekly", list.Tasks[1]["id"])
	assert.Nil(t, list.Tasks[1]["next_run"])

	rec = env.do(t, http.MethodGet, "/api/tasks/weekly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0 0 * * 0", decode(t, rec)["cron_expression"])

	rec = env.do(t, http.MethodGet, "/api/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task nope not found", decode(t, rec)["detail"])
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)

	rec := env.do(t, http.MethodPut, "/api/tasks/daily_report", `{"schedule_type":"cron","cron_expression":"0 9 * * 1-5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "cron", body["schedule_type"])
	assert.Equal(t, "0 9 * * 1-5", body["cron_expression"])
	assert.NotNil(t, body["next_run"])

	rec = env.do(t, http.MethodPut, "/api/tasks/daily_report", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["next_run"])
	assert.Nil(t, env.scheduler.NextRun("daily_report"))

	rec = env.do(t, http.MethodPut, "/api/tasks/daily_report", `{"interval_minutes":-5,"schedule_type":"interval"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/tasks/missing", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnableDisable(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)

	rec := env.do(t, http.MethodPost, "/api/tasks/daily_report/disable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["enabled"])
	assert.Nil(t, body["next_run"])
	assert.Nil(t, env.scheduler.NextRun("daily_report"))

	rec = env.do(t, http.MethodPost, "/api/tasks/daily_report/enable", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["enabled"])
	assert.NotNil(t, body["next_run"])
	assert.Equal(t, float64(30), body["interval_minutes"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/tasks/missing/enable", "").Code)
}

func TestUpdateTask_RescheduleFailureRestores(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks",
		`{"name":"p","prompt":"x","interval_minutes":5}`).Code)
	before := env.scheduler.NextRun("p")
	require.NotNil(t, before)

	rec := env.do(t, http.MethodPut, "/api/tasks/p",
		`{"name":"renamed","schedule_type":"cron","cron_expression":"99 99 * * *"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec)["detail"], "Failed to reschedule task p")

	stored, err := env.registry.Get("p")
	require.NoError(t, err)
	assert.Equal(t, "p", stored.Name)
	assert.Equal(t, 5, stored.Schedule.IntervalMinutes())
	assert.Empty(t, stored.Schedule.CronExpression())

	entries := env.scheduler.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "@every 5m", entries[0].Spec)

	rec = env.do(t, http.MethodGet, "/api/tasks/p", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "interval", body["schedule_type"])
	assert.Equal(t, float64(5), body["interval_minutes"])
	assert.NotNil(t, body["next_run"])
}

func TestEnableTask_ScheduleFailureRestores(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks",
		`{"name":"bad","prompt":"x","schedule_type":"cron","cron_expression":"99 99 * * *","enabled":false}`).Code)

	rec := env.do(t, http.MethodPost, "/api/tasks/bad/enable", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	stored, err := env.registry.Get("bad")
	require.NoError(t, err)
	assert.False(t, stored.Active())
	assert.Nil(t, env.scheduler.NextRun("bad"))

	rec = env.do(t, http.MethodGet, "/api/tasks/bad", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["enabled"])
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)

	rec := env.do(t, http.MethodDelete, "/api/tasks/daily_report", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, env.scheduler.NextRun("daily_report"))

	rec = env.do(t, http.MethodDelete, "/api/tasks/daily_report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTask(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)

	rec := env.do(t, http.MethodPost, "/api/tasks/daily_report/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "daily_report", body["task_id"])
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Task daily_report execution started", body["message"])
	assert.Equal(t, []string{"daily_report"}, env.dispatcher.calls)

	env.dispatcher.err = workers.ErrAlreadyRunning
	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodPost, "/api/tasks/daily_report/run", "").Code)

	env.dispatcher.err = store.ErrNotFound
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/tasks/ghost/run", "").Code)
}

func TestTaskSteps(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/tasks", dailyReport).Code)

	rec := env.do(t, http.MethodGet, "/api/tasks/daily_report/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, env.registry.AppendStep("daily_report", stepText("opened terminal")))
	rec = env.do(t, http.MethodGet, "/api/tasks/daily_report/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var steps []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &steps))
	require.Len(t, steps, 1)
	assert.Equal(t, "opened terminal", steps[0]["text"])

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/tasks/missing/steps", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skybit_runs_in_flight")
}

func TestUnknownRouteUsesDetail(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decode(t, rec)["detail"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func stepText(text string) tasks.Step {
	return tasks.Step{Text: text}
}
