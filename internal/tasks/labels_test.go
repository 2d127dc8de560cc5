package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		in    string
		want  Status
		label string
	}{
		{in: "success", want: StatusSuccess, label: "Success"},
		{in: "RUNNING", want: StatusRunning, label: "Running"},
		{in: " failed ", want: StatusFailed, label: "Failed"},
		{in: "", want: StatusUnknown, label: "Unknown"},
		{in: "completed", want: StatusUnknown, label: "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseStatus(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.label, got.Label())
		})
	}
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "OpenAI", ProviderLabel("openai"))
	assert.Equal(t, "Anthropic", ProviderLabel("anthropic"))
	assert.Equal(t, "Mistral", ProviderLabel("mistral"))
}

func TestInstanceLabel(t *testing.T) {
	assert.Equal(t, "Ubuntu", InstanceLabel("ubuntu"))
	assert.Equal(t, "Browser", InstanceLabel("browser"))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2026, 4, 7, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "2026-04-07 14:05", FormatTime(&ts, "Never"))
	assert.Equal(t, "Never", FormatTime(nil, "Never"))
	assert.Equal(t, "Not scheduled", FormatTime(&time.Time{}, "Not scheduled"))
}
