package schedule

import "time"

// Toggle flips the enabled flag of s.
//
// Enabling stamps an advisory NextRunEstimate of now plus one cadence so a
// UI can show something immediately; the value must be replaced by the next
// read from the task store. Disabling clears the estimate.
func Toggle(s Schedule, now time.Time) Schedule {
	if s.enabled {
		s.enabled = false
		s.nextRunEstimate = time.Time{}
		return s
	}
	s.enabled = true
	s.nextRunEstimate = now.Add(s.Cadence())
	return s
}
