// Package schedule models how often an agent task runs.
//
// A Schedule is either a fixed interval in minutes or a five-field cron
// expression, plus an enabled flag. Values are immutable: every edit
// returns a new Schedule. Nothing here performs I/O or evaluates cron
// timing; that belongs to the scheduler that owns the task.
package schedule

import (
	"strings"
	"time"
)

// Kind is the schedule mode.
type Kind string

const (
	KindInterval Kind = "interval"
	KindCron     Kind = "cron"
)

// CronFields is the number of whitespace-separated fields in a cron
// expression: minute hour day month weekday.
const CronFields = 5

// Input is raw user input for building a Schedule.
// Amount and Unit are read for KindInterval, CronText for KindCron.
type Input struct {
	Mode     Kind
	Amount   int
	Unit     Unit
	CronText string
	Enabled  bool
}

// Schedule is a validated task cadence.
// The zero value has no kind and describes as "Unknown schedule".
type Schedule struct {
	kind            Kind
	intervalMinutes int
	cronExpression  string
	enabled         bool
	nextRunEstimate time.Time
}

// New validates in and builds a Schedule.
func New(in Input) (Schedule, error) {
	switch in.Mode {
	case KindInterval:
		minutes, err := intervalMinutes(in.Amount, in.Unit)
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{kind: KindInterval, intervalMinutes: minutes, enabled: in.Enabled}, nil
	case KindCron:
		expr, err := normalizeCron(in.CronText)
		if err != nil {
			return Schedule{}, err
		}
		return Schedule{kind: KindCron, cronExpression: expr, enabled: in.Enabled}, nil
	default:
		return Schedule{}, invalid("schedule_type", in.Mode, "expected interval or cron")
	}
}

// NewInterval builds an enabled interval schedule.
func NewInterval(amount int, unit Unit) (Schedule, error) {
	return New(Input{Mode: KindInterval, Amount: amount, Unit: unit, Enabled: true})
}

// NewCron builds an enabled cron schedule.
func NewCron(expr string) (Schedule, error) {
	return New(Input{Mode: KindCron, CronText: expr, Enabled: true})
}

func intervalMinutes(amount int, unit Unit) (int, error) {
	if amount < 1 {
		return 0, invalid("interval_minutes", amount, "must be at least 1")
	}
	switch unit {
	case UnitMinutes, "":
		return amount, nil
	case UnitHours:
		return FromHours(amount), nil
	default:
		return 0, invalid("unit", unit, "expected minutes or hours")
	}
}

// normalizeCron checks the field count only. Field ranges are not
// validated: "99 99 * * *" is accepted and handed to the scheduler as is.
func normalizeCron(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) != CronFields {
		return "", invalid("cron_expression", text, "expected 5 fields: minute hour day month weekday")
	}
	return strings.Join(fields, " "), nil
}

func (s Schedule) Kind() Kind { return s.kind }

// IntervalMinutes returns the interval, or 0 for non-interval schedules.
func (s Schedule) IntervalMinutes() int { return s.intervalMinutes }

// CronExpression returns the single-space normalized expression, or ""
// for non-cron schedules.
func (s Schedule) CronExpression() string { return s.cronExpression }

func (s Schedule) Enabled() bool { return s.enabled }

// NextRunEstimate returns the advisory next run stamped by Toggle.
// It is display-only and never authoritative.
func (s Schedule) NextRunEstimate() (time.Time, bool) {
	return s.nextRunEstimate, !s.nextRunEstimate.IsZero()
}

// IsZero reports whether s was never constructed.
func (s Schedule) IsZero() bool { return s.kind == "" }

// Validate re-checks the invariants of s.
func (s Schedule) Validate() error {
	switch s.kind {
	case KindInterval:
		if s.cronExpression != "" {
			return invalid("cron_expression", s.cronExpression, "not allowed for interval schedules")
		}
		_, err := intervalMinutes(s.intervalMinutes, UnitMinutes)
		return err
	case KindCron:
		if s.intervalMinutes != 0 {
			return invalid("interval_minutes", s.intervalMinutes, "not allowed for cron schedules")
		}
		_, err := normalizeCron(s.cronExpression)
		return err
	default:
		return invalid("schedule_type", s.kind, "expected interval or cron")
	}
}

// WithEnabled returns a copy of s with enabled set. Any advisory estimate
// is dropped.
func (s Schedule) WithEnabled(enabled bool) Schedule {
	s.enabled = enabled
	s.nextRunEstimate = time.Time{}
	return s
}

// WithoutEstimate returns a copy of s without the advisory next run.
func (s Schedule) WithoutEstimate() Schedule {
	s.nextRunEstimate = time.Time{}
	return s
}

// Equal compares two schedules ignoring the advisory estimate.
func (s Schedule) Equal(o Schedule) bool {
	return s.kind == o.kind &&
		s.intervalMinutes == o.intervalMinutes &&
		s.cronExpression == o.cronExpression &&
		s.enabled == o.enabled
}

// Cadence returns the time between runs used for advisory estimates.
// Cron schedules are not evaluated here and count as one hour.
func (s Schedule) Cadence() time.Duration {
	if s.kind == KindInterval && s.intervalMinutes > 0 {
		return time.Duration(s.intervalMinutes) * time.Minute
	}
	return time.Hour
}
