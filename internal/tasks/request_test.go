package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/skybit/internal/schedule"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestIDFromName(t *testing.T) {
	assert.Equal(t, "daily_news_summary", IDFromName("Daily News Summary"))
	assert.Equal(t, "backup", IDFromName("  Backup "))
	assert.Equal(t, "a__b", IDFromName("A  B"))
}

func TestCreateRequest_Defaults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	task, err := CreateRequest{Name: "Daily Report", Prompt: "Write the report"}.Task(now)
	require.NoError(t, err)

	assert.Equal(t, "daily_report", task.ID)
	assert.Equal(t, InstanceUbuntu, task.InstanceType)
	assert.Equal(t, ProviderOpenAI, task.ModelProvider)
	assert.Equal(t, schedule.KindInterval, task.Schedule.Kind())
	assert.Equal(t, 60, task.Schedule.IntervalMinutes())
	assert.True(t, task.Active())
	assert.Equal(t, StatusUnknown, task.LastStatus)
	assert.Equal(t, now, task.CreatedAt)
	assert.Equal(t, now, task.UpdatedAt)
}

func TestCreateRequest_Cron(t *testing.T) {
	task, err := CreateRequest{
		Name:           "Weekly",
		Prompt:         "p",
		ScheduleType:   "cron",
		CronExpression: strPtr("0  0 * *   0"),
		Enabled:        boolPtr(false),
	}.Task(time.Now())
	require.NoError(t, err)

	assert.Equal(t, "0 0 * * 0", task.Schedule.CronExpression())
	assert.False(t, task.Active())
}

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{name: "missing name", req: CreateRequest{Prompt: "p"}, wantErr: ErrInvalidTask},
		{name: "blank prompt", req: CreateRequest{Name: "n", Prompt: "  "}, wantErr: ErrInvalidTask},
		{name: "bad instance", req: CreateRequest{Name: "n", Prompt: "p", InstanceType: "windows"}, wantErr: ErrInvalidTask},
		{name: "bad provider", req: CreateRequest{Name: "n", Prompt: "p", ModelProvider: "mistral"}, wantErr: ErrInvalidTask},
		{name: "zero interval", req: CreateRequest{Name: "n", Prompt: "p", IntervalMinutes: intPtr(0)}, wantErr: schedule.ErrInvalidSchedule},
		{name: "cron without expression", req: CreateRequest{Name: "n", Prompt: "p", ScheduleType: "cron"}, wantErr: schedule.ErrInvalidSchedule},
		{name: "bad schedule type", req: CreateRequest{Name: "n", Prompt: "p", ScheduleType: "weekly"}, wantErr: schedule.ErrInvalidSchedule},
		{name: "valid", req: CreateRequest{Name: "n", Prompt: "p", IntervalMinutes: intPtr(15)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func baseTask(t *testing.T) Task {
	t.Helper()
	task, err := CreateRequest{Name: "Daily", Prompt: "p", IntervalMinutes: intPtr(30)}.Task(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return task
}

func TestUpdateRequest_Apply(t *testing.T) {
	task := baseTask(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := UpdateRequest{
		Prompt:         strPtr("new prompt"),
		ModelProvider:  strPtr(ProviderAnthropic),
		ScheduleType:   strPtr("cron"),
		CronExpression: strPtr("0 * * * *"),
	}.Apply(&task, now)
	require.NoError(t, err)

	assert.Equal(t, "daily", task.ID)
	assert.Equal(t, "new prompt", task.Prompt)
	assert.Equal(t, ProviderAnthropic, task.ModelProvider)
	assert.Equal(t, schedule.KindCron, task.Schedule.Kind())
	assert.Equal(t, "Hourly", task.ScheduleDescription())
	assert.True(t, task.Active())
	assert.Equal(t, now, task.UpdatedAt)
}

func TestUpdateRequest_EnabledOnly(t *testing.T) {
	task := baseTask(t)

	require.NoError(t, UpdateRequest{Enabled: boolPtr(false)}.Apply(&task, time.Now()))
	assert.False(t, task.Active())
	assert.Equal(t, 30, task.Schedule.IntervalMinutes())
}

func TestUpdateRequest_InvalidLeavesTaskUnchanged(t *testing.T) {
	tests := []struct {
		name string
		req  UpdateRequest
	}{
		{name: "empty name", req: UpdateRequest{Name: strPtr(" ")}},
		{name: "bad provider", req: UpdateRequest{Prompt: strPtr("changed"), ModelProvider: strPtr("x")}},
		{name: "switch to cron without expression", req: UpdateRequest{ScheduleType: strPtr("cron")}},
		{name: "negative interval", req: UpdateRequest{IntervalMinutes: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := baseTask(t)
			before := task.Clone()

			assert.Error(t, tt.req.Apply(&task, time.Now()))
			assert.Equal(t, before.Prompt, task.Prompt)
			assert.Equal(t, before.ModelProvider, task.ModelProvider)
			assert.True(t, before.Schedule.Equal(task.Schedule))
			assert.Equal(t, before.UpdatedAt, task.UpdatedAt)
		})
	}
}
