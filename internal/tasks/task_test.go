package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/skybit/internal/schedule"
)

func newTask(t *testing.T) Task {
	t.Helper()
	s, err := schedule.NewCron("0 9 * * 1-5")
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return Task{
		ID:            "morning_digest",
		Name:          "Morning Digest",
		Description:   "Summarise overnight news",
		Prompt:        "Collect headlines",
		InstanceType:  InstanceBrowser,
		ModelProvider: ProviderAnthropic,
		Tools:         []ToolConfig{{Name: "computer", Enabled: true}},
		Schedule:      s,
		Schema:        map[string]any{"type": "object", "required": []any{"headlines"}},
		CreatedAt:     created,
		UpdatedAt:     created,
		LastStatus:    StatusSuccess,
		LastResult:    &RunResult{Text: "done", Timestamp: created},
		Steps:         []Step{{Text: "open browser", Timestamp: created, ToolCalls: []ToolCall{{ToolName: "computer", Args: map[string]any{"action": "screenshot"}}}}},
	}
}

func TestTask_JSONFlattensSchedule(t *testing.T) {
	task := newTask(t)

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "morning_digest", raw["id"])
	assert.Equal(t, "cron", raw["schedule_type"])
	assert.Equal(t, "0 9 * * 1-5", raw["cron_expression"])
	assert.Equal(t, true, raw["enabled"])
	assert.NotContains(t, raw, "interval_minutes")
	assert.Equal(t, "success", raw["last_status"])
	assert.Nil(t, raw["next_run"])
	assert.Nil(t, raw["last_error"])
}

func TestTask_JSONRoundTrip(t *testing.T) {
	task := newTask(t)

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded Task
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, task.ID, decoded.ID)
	assert.True(t, task.Schedule.Equal(decoded.Schedule))
	assert.Equal(t, task.Steps, decoded.Steps)
	assert.Equal(t, task.LastResult.Text, decoded.LastResult.Text)
	assert.Equal(t, StatusSuccess, decoded.LastStatus)
}

func TestTask_UnmarshalLegacyPayload(t *testing.T) {
	payload := `{
		"id": "weekly",
		"name": "Weekly",
		"prompt": "p",
		"instance_type": "ubuntu",
		"model_provider": "openai",
		"schedule_type": "cron",
		"interval_minutes": 60,
		"cron_expression": "0 0 * * 0",
		"enabled": false,
		"last_status": "exploded"
	}`

	var task Task
	require.NoError(t, json.Unmarshal([]byte(payload), &task))
	assert.Equal(t, schedule.KindCron, task.Schedule.Kind())
	assert.Zero(t, task.Schedule.IntervalMinutes())
	assert.False(t, task.Active())
	assert.Equal(t, StatusUnknown, task.LastStatus)
	assert.Equal(t, "Sundays at midnight", task.ScheduleDescription())
}

func TestTask_UnmarshalInvalidSchedule(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"id":"x","schedule_type":"interval","interval_minutes":0}`), &task)
	assert.ErrorIs(t, err, schedule.ErrInvalidSchedule)
}

func TestTask_YAML(t *testing.T) {
	data, err := yaml.Marshal(newTask(t))
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "schedule_type: cron")
	assert.Contains(t, out, "cron_expression:")
	assert.Contains(t, out, "0 9 * * 1-5")
	assert.Contains(t, out, "model_provider: anthropic")
}

func TestTask_Clone(t *testing.T) {
	task := newTask(t)
	now := time.Now()
	task.LastRun = &now

	c := task.Clone()
	c.Tools[0].Enabled = false
	c.Schema["type"] = "array"
	c.Schema["required"].([]any)[0] = "changed"
	c.Steps[0].ToolCalls[0].Args["action"] = "click"
	c.LastResult.Text = "changed"
	*c.LastRun = now.Add(time.Hour)

	assert.True(t, task.Tools[0].Enabled)
	assert.Equal(t, "object", task.Schema["type"])
	assert.Equal(t, "headlines", task.Schema["required"].([]any)[0])
	assert.Equal(t, "screenshot", task.Steps[0].ToolCalls[0].Args["action"])
	assert.Equal(t, "done", task.LastResult.Text)
	assert.Equal(t, now, *task.LastRun)
}

func TestTask_ApplyRun(t *testing.T) {
	task := newTask(t)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	task.ApplyRun(RunRecord{Status: StatusRunning, At: at})
	assert.Equal(t, StatusRunning, task.LastStatus)
	assert.Nil(t, task.LastRun)

	task.ApplyRun(RunRecord{Status: StatusFailed, At: at, Error: &RunError{Message: "gateway down", Timestamp: at}})
	assert.Equal(t, StatusFailed, task.LastStatus)
	require.NotNil(t, task.LastRun)
	assert.Equal(t, at, *task.LastRun)
	assert.Equal(t, "gateway down", task.LastError.Message)
	assert.Equal(t, "done", task.LastResult.Text, "failed run keeps previous result")

	later := at.Add(time.Hour)
	task.ApplyRun(RunRecord{
		Status: StatusSuccess,
		At:     later,
		Result: &RunResult{Text: "fresh", Timestamp: later},
		Steps:  []Step{{Text: "s1", Timestamp: later}},
	})
	assert.Equal(t, StatusSuccess, task.LastStatus)
	assert.Nil(t, task.LastError)
	assert.Equal(t, "fresh", task.LastResult.Text)
	assert.Len(t, task.Steps, 1)
}
