package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownDescription is rendered for schedules with no usable kind.
const UnknownDescription = "Unknown schedule"

// knownCron maps well-known expressions to friendly text.
// Keys are single-space normalized and case-sensitive.
var knownCron = map[string]string{
	"0 * * * *":   "Hourly",
	"0 9 * * 1-5": "Weekdays at 9 AM",
	"0 9 * * 1":   "Mondays at 9 AM",
	"0 0 * * 0":   "Sundays at midnight",
}

// Describe renders s for list views. It never fails.
func Describe(s Schedule) string {
	switch s.kind {
	case KindInterval:
		return describeInterval(s.intervalMinutes)
	case KindCron:
		return DescribeCron(s.cronExpression)
	default:
		return UnknownDescription
	}
}

// String implements fmt.Stringer.
func (s Schedule) String() string { return Describe(s) }

// DescribeCron renders a cron expression. Expressions outside the lookup
// table, including garbage, are echoed back verbatim.
func DescribeCron(expr string) string {
	if desc, ok := knownCron[strings.Join(strings.Fields(expr), " ")]; ok {
		return desc
	}
	return expr
}

func describeInterval(minutes int) string {
	switch {
	case minutes < 1:
		return UnknownDescription
	case minutes < 60:
		return fmt.Sprintf("Every %d minutes", minutes)
	case minutes == 60:
		return "Hourly"
	}
	hours := float64(minutes) / 60
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	return fmt.Sprintf("Every %s %s", strconv.FormatFloat(hours, 'f', -1, 64), unit)
}
