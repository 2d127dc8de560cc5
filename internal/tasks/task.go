// Package tasks defines the agent task record served by the task store.
package tasks

import (
	"encoding/json"
	"time"

	"github.com/aatumaykin/skybit/internal/schedule"
)

// Instance types.
const (
	InstanceUbuntu  = "ubuntu"
	InstanceBrowser = "browser"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ToolConfig enables or disables one agent tool.
type ToolConfig struct {
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// ToolCall is a tool invocation made during a step.
type ToolCall struct {
	ToolName string         `json:"tool_name" yaml:"tool_name"`
	Args     map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// Step is one agent step reported by a run.
type Step struct {
	Text      string     `json:"text" yaml:"text"`
	Timestamp time.Time  `json:"timestamp" yaml:"timestamp"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
}

// RunResult is the output of a successful run.
type RunResult struct {
	Text      string    `json:"text" yaml:"text"`
	Output    any       `json:"output,omitempty" yaml:"output,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Steps     []Step    `json:"-" yaml:"-"`
}

// RunError describes a failed run.
type RunError struct {
	Message   string    `json:"message" yaml:"message"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Task is a scheduled agent task.
type Task struct {
	ID            string
	Name          string
	Description   string
	Prompt        string
	SystemPrompt  string
	InstanceType  string
	ModelProvider string
	Tools         []ToolConfig
	Schedule      schedule.Schedule
	Schema        map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastRun       *time.Time
	LastStatus    Status
	LastResult    *RunResult
	LastError     *RunError
	NextRun       *time.Time
	Steps         []Step
}

// Active reports whether the task is enabled.
func (t Task) Active() bool {
	return t.Schedule.Enabled()
}

// ScheduleDescription renders the task cadence for display.
func (t Task) ScheduleDescription() string {
	return schedule.Describe(t.Schedule)
}

// record is the wire shape of a Task: the schedule fields sit at the top
// level next to the task fields.
type record struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description" yaml:"description"`
	Prompt        string         `json:"prompt" yaml:"prompt"`
	SystemPrompt  string         `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	InstanceType  string         `json:"instance_type" yaml:"instance_type"`
	ModelProvider string         `json:"model_provider" yaml:"model_provider"`
	Tools         []ToolConfig   `json:"tools" yaml:"tools"`
	schedule.Wire `yaml:",inline"`
	Schema        map[string]any `json:"schema,omitempty" yaml:"schema,omitempty"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"updated_at"`
	LastRun       *time.Time     `json:"last_run" yaml:"last_run"`
	LastStatus    Status         `json:"last_status" yaml:"last_status"`
	LastResult    *RunResult     `json:"last_result" yaml:"last_result"`
	LastError     *RunError      `json:"last_error" yaml:"last_error"`
	NextRun       *time.Time     `json:"next_run" yaml:"next_run"`
	Steps         []Step         `json:"steps,omitempty" yaml:"steps,omitempty"`
}

func (t Task) toRecord() record {
	tools := t.Tools
	if tools == nil {
		tools = []ToolConfig{}
	}
	status := t.LastStatus
	if status == "" {
		status = StatusUnknown
	}
	return record{
		ID:            t.ID,
		Name:          t.Name,
		Description:   t.Description,
		Prompt:        t.Prompt,
		SystemPrompt:  t.SystemPrompt,
		InstanceType:  t.InstanceType,
		ModelProvider: t.ModelProvider,
		Tools:         tools,
		Wire:          schedule.ToWire(t.Schedule),
		Schema:        t.Schema,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		LastRun:       t.LastRun,
		LastStatus:    status,
		LastResult:    t.LastResult,
		LastError:     t.LastError,
		NextRun:       t.NextRun,
		Steps:         t.Steps,
	}
}

// MarshalJSON implements json.Marshaler.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toRecord())
}

// MarshalYAML implements yaml.Marshaler.
func (t Task) MarshalYAML() (any, error) {
	return t.toRecord(), nil
}

// UnmarshalJSON implements json.Unmarshaler. The schedule fields are
// validated; a task with an invalid schedule fails to decode.
func (t *Task) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	s, err := schedule.FromWire(r.Wire)
	if err != nil {
		return err
	}

	*t = Task{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Prompt:        r.Prompt,
		SystemPrompt:  r.SystemPrompt,
		InstanceType:  r.InstanceType,
		ModelProvider: r.ModelProvider,
		Tools:         r.Tools,
		Schedule:      s,
		Schema:        r.Schema,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		LastRun:       r.LastRun,
		LastStatus:    ParseStatus(string(r.LastStatus)),
		LastResult:    r.LastResult,
		LastError:     r.LastError,
		NextRun:       r.NextRun,
		Steps:         r.Steps,
	}
	return nil
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	if t.Tools != nil {
		c.Tools = append([]ToolConfig(nil), t.Tools...)
	}
	c.Schema = cloneMap(t.Schema)
	c.LastRun = cloneTime(t.LastRun)
	c.NextRun = cloneTime(t.NextRun)
	if t.LastResult != nil {
		r := *t.LastResult
		r.Output = cloneValue(r.Output)
		r.Steps = cloneSteps(r.Steps)
		c.LastResult = &r
	}
	if t.LastError != nil {
		e := *t.LastError
		c.LastError = &e
	}
	c.Steps = cloneSteps(t.Steps)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s
		if s.ToolCalls != nil {
			out[i].ToolCalls = make([]ToolCall, len(s.ToolCalls))
			for j, call := range s.ToolCalls {
				out[i].ToolCalls[j] = ToolCall{ToolName: call.ToolName, Args: cloneMap(call.Args)}
			}
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
