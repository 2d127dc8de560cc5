package schedule

import (
	"errors"
	"fmt"
)

// ErrInvalidSchedule is matched by errors.Is for every *InvalidScheduleError.
var ErrInvalidSchedule = errors.New("invalid schedule")

// InvalidScheduleError reports user input that cannot form a Schedule.
// It is always recoverable: the caller re-prompts for the offending field.
type InvalidScheduleError struct {
	Field  string // schedule_type, interval_minutes, unit or cron_expression
	Value  any
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule: %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidSchedule) match.
func (e *InvalidScheduleError) Is(target error) bool {
	return target == ErrInvalidSchedule
}

func invalid(field string, value any, reason string) error {
	return &InvalidScheduleError{Field: field, Value: value, Reason: reason}
}
