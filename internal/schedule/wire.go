package schedule

import (
	"encoding/json"
	"strings"
)

// Wire is the task store representation of a schedule.
//
// Payloads written by older backends may carry both interval_minutes and
// cron_expression; only the field matching schedule_type is read.
type Wire struct {
	ScheduleType    string  `json:"schedule_type" yaml:"schedule_type"`
	IntervalMinutes *int    `json:"interval_minutes,omitempty" yaml:"interval_minutes,omitempty"`
	CronExpression  *string `json:"cron_expression,omitempty" yaml:"cron_expression,omitempty"`
	Enabled         bool    `json:"enabled" yaml:"enabled"`
}

// ToWire converts s to its wire shape.
func ToWire(s Schedule) Wire {
	w := Wire{ScheduleType: string(s.kind), Enabled: s.enabled}
	switch s.kind {
	case KindInterval:
		m := s.intervalMinutes
		w.IntervalMinutes = &m
	case KindCron:
		c := s.cronExpression
		w.CronExpression = &c
	}
	return w
}

// FromWire validates w with the same rules as New.
func FromWire(w Wire) (Schedule, error) {
	in := Input{Mode: w.kind(), Enabled: w.Enabled}
	switch in.Mode {
	case KindInterval:
		if w.IntervalMinutes == nil {
			return Schedule{}, invalid("interval_minutes", nil, "required for interval schedules")
		}
		in.Amount = *w.IntervalMinutes
		in.Unit = UnitMinutes
	case KindCron:
		if w.CronExpression == nil {
			return Schedule{}, invalid("cron_expression", nil, "required for cron schedules")
		}
		in.CronText = *w.CronExpression
	}
	return New(in)
}

// kind normalizes the wire schedule_type.
func (w Wire) kind() Kind {
	return Kind(strings.ToLower(strings.TrimSpace(w.ScheduleType)))
}

// Describe renders w without validating it, so legacy or malformed
// payloads still display. It never fails.
func (w Wire) Describe() string {
	switch w.kind() {
	case KindInterval:
		if w.IntervalMinutes == nil {
			return UnknownDescription
		}
		return describeInterval(*w.IntervalMinutes)
	case KindCron:
		if w.CronExpression == nil {
			return UnknownDescription
		}
		return DescribeCron(*w.CronExpression)
	default:
		return UnknownDescription
	}
}

// MarshalJSON implements json.Marshaler.
func (s Schedule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToWire(s))
}

// UnmarshalJSON implements json.Unmarshaler. Invalid payloads fail with
// an *InvalidScheduleError.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parsed, err := FromWire(w)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
