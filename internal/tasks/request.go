package tasks

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/skybit/internal/schedule"
)

// ErrInvalidTask is wrapped by every task validation error.
var ErrInvalidTask = errors.New("invalid task")

// DefaultIntervalMinutes is used when a new task names no schedule.
const DefaultIntervalMinutes = 60

// IDFromName derives a task ID: lower case with spaces replaced by
// underscores.
func IDFromName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// CreateRequest is the payload for creating a task.
type CreateRequest struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Prompt          string         `json:"prompt"`
	InstanceType    string         `json:"instance_type,omitempty"`
	ModelProvider   string         `json:"model_provider,omitempty"`
	SystemPrompt    string         `json:"system_prompt,omitempty"`
	ScheduleType    string         `json:"schedule_type,omitempty"`
	IntervalMinutes *int           `json:"interval_minutes,omitempty"`
	CronExpression  *string        `json:"cron_expression,omitempty"`
	Tools           []ToolConfig   `json:"tools,omitempty"`
	Enabled         *bool          `json:"enabled,omitempty"`
	Schema          map[string]any `json:"schema,omitempty"`
}

func (r CreateRequest) withDefaults() CreateRequest {
	if r.InstanceType == "" {
		r.InstanceType = InstanceUbuntu
	}
	if r.ModelProvider == "" {
		r.ModelProvider = ProviderOpenAI
	}
	if r.ScheduleType == "" {
		r.ScheduleType = string(schedule.KindInterval)
	}
	if r.IntervalMinutes == nil && schedule.Kind(r.ScheduleType) == schedule.KindInterval {
		m := DefaultIntervalMinutes
		r.IntervalMinutes = &m
	}
	if r.Enabled == nil {
		enabled := true
		r.Enabled = &enabled
	}
	return r
}

func (r CreateRequest) wire() schedule.Wire {
	return schedule.Wire{
		ScheduleType:    r.ScheduleType,
		IntervalMinutes: r.IntervalMinutes,
		CronExpression:  r.CronExpression,
		Enabled:         *r.Enabled,
	}
}

// Validate checks r after defaults are applied.
func (r CreateRequest) Validate() error {
	_, err := r.Task(time.Time{})
	return err
}

// Task builds a new task stamped with now.
func (r CreateRequest) Task(now time.Time) (Task, error) {
	r = r.withDefaults()

	if strings.TrimSpace(r.Name) == "" {
		return Task{}, fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return Task{}, fmt.Errorf("%w: prompt is required", ErrInvalidTask)
	}
	if err := validateInstance(r.InstanceType); err != nil {
		return Task{}, err
	}
	if err := validateProvider(r.ModelProvider); err != nil {
		return Task{}, err
	}

	s, err := schedule.FromWire(r.wire())
	if err != nil {
		return Task{}, err
	}

	return Task{
		ID:            IDFromName(r.Name),
		Name:          r.Name,
		Description:   r.Description,
		Prompt:        r.Prompt,
		SystemPrompt:  r.SystemPrompt,
		InstanceType:  r.InstanceType,
		ModelProvider: r.ModelProvider,
		Tools:         r.Tools,
		Schedule:      s,
		Schema:        r.Schema,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastStatus:    StatusUnknown,
	}, nil
}

// UpdateRequest changes the fields that are set. Run history cannot be
// updated.
type UpdateRequest struct {
	Name            *string         `json:"name,omitempty"`
	Description     *string         `json:"description,omitempty"`
	Prompt          *string         `json:"prompt,omitempty"`
	InstanceType    *string         `json:"instance_type,omitempty"`
	ModelProvider   *string         `json:"model_provider,omitempty"`
	SystemPrompt    *string         `json:"system_prompt,omitempty"`
	ScheduleType    *string         `json:"schedule_type,omitempty"`
	IntervalMinutes *int            `json:"interval_minutes,omitempty"`
	CronExpression  *string         `json:"cron_expression,omitempty"`
	Tools           *[]ToolConfig   `json:"tools,omitempty"`
	Enabled         *bool           `json:"enabled,omitempty"`
	Schema          *map[string]any `json:"schema,omitempty"`
}

func (r UpdateRequest) touchesSchedule() bool {
	return r.ScheduleType != nil || r.IntervalMinutes != nil || r.CronExpression != nil || r.Enabled != nil
}

// Apply updates t in place. On error t is left unchanged.
func (r UpdateRequest) Apply(t *Task, now time.Time) error {
	next := t.Clone()

	if r.Name != nil {
		if strings.TrimSpace(*r.Name) == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidTask)
		}
		next.Name = *r.Name
	}
	if r.Description != nil {
		next.Description = *r.Description
	}
	if r.Prompt != nil {
		if strings.TrimSpace(*r.Prompt) == "" {
			return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidTask)
		}
		next.Prompt = *r.Prompt
	}
	if r.InstanceType != nil {
		if err := validateInstance(*r.InstanceType); err != nil {
			return err
		}
		next.InstanceType = *r.InstanceType
	}
	if r.ModelProvider != nil {
		if err := validateProvider(*r.ModelProvider); err != nil {
			return err
		}
		next.ModelProvider = *r.ModelProvider
	}
	if r.SystemPrompt != nil {
		next.SystemPrompt = *r.SystemPrompt
	}
	if r.Tools != nil {
		next.Tools = append([]ToolConfig(nil), (*r.Tools)...)
	}
	if r.Schema != nil {
		next.Schema = *r.Schema
	}

	if r.touchesSchedule() {
		w := schedule.ToWire(t.Schedule)
		if r.ScheduleType != nil {
			w.ScheduleType = *r.ScheduleType
		}
		if r.IntervalMinutes != nil {
			w.IntervalMinutes = r.IntervalMinutes
		}
		if r.CronExpression != nil {
			w.CronExpression = r.CronExpression
		}
		if r.Enabled != nil {
			w.Enabled = *r.Enabled
		}
		s, err := schedule.FromWire(w)
		if err != nil {
			return err
		}
		next.Schedule = s
	}

	next.UpdatedAt = now
	*t = next
	return nil
}

func validateInstance(instance string) error {
	switch instance {
	case InstanceUbuntu, InstanceBrowser:
		return nil
	default:
		return fmt.Errorf("%w: instance_type %q (expected ubuntu or browser)", ErrInvalidTask, instance)
	}
}

func validateProvider(provider string) error {
	switch provider {
	case ProviderOpenAI, ProviderAnthropic:
		return nil
	default:
		return fmt.Errorf("%w: model_provider %q (expected openai or anthropic)", ErrInvalidTask, provider)
	}
}
