package schedule

// Unit is the display unit of an interval. Storage is always minutes.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
)

// ParseUnit accepts the common spellings of minutes and hours.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "", "m", "min", "mins", "minute", "minutes":
		return UnitMinutes, nil
	case "h", "hr", "hrs", "hour", "hours":
		return UnitHours, nil
	default:
		return "", invalid("unit", s, "expected minutes or hours")
	}
}

// ToHours converts minutes to whole hours. It is defined only when
// minutes is a non-negative multiple of 60.
func ToHours(minutes int) (int, bool) {
	if minutes < 0 || minutes%60 != 0 {
		return 0, false
	}
	return minutes / 60, true
}

// FromHours converts hours to minutes.
func FromHours(hours int) int {
	return hours * 60
}

// IntervalField is the editing state of an interval input: the stored
// minutes plus the unit it is currently shown in. Switching units never
// changes Minutes.
type IntervalField struct {
	Minutes int
	Unit    Unit
}

// Display returns the amount shown to the user in the current unit.
func (f IntervalField) Display() int {
	if f.Unit == UnitHours {
		if h, ok := ToHours(f.Minutes); ok {
			return h
		}
	}
	return f.Minutes
}

// WithUnit switches the display unit. Switching to hours when Minutes is
// not a multiple of 60 leaves the field unchanged.
func (f IntervalField) WithUnit(u Unit) IntervalField {
	switch u {
	case UnitMinutes:
		f.Unit = UnitMinutes
	case UnitHours:
		if _, ok := ToHours(f.Minutes); ok {
			f.Unit = UnitHours
		}
	}
	return f
}

// WithAmount commits an amount typed in the current unit.
func (f IntervalField) WithAmount(amount int) IntervalField {
	if f.Unit == UnitHours {
		f.Minutes = FromHours(amount)
	} else {
		f.Minutes = amount
	}
	return f
}

// Schedule builds an interval schedule from the field.
func (f IntervalField) Schedule(enabled bool) (Schedule, error) {
	return New(Input{Mode: KindInterval, Amount: f.Minutes, Unit: UnitMinutes, Enabled: enabled})
}
