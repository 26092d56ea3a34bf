package session

import "time"

// AdjustToNextWorkingDay advances t by whole days while it falls on a
// Saturday or Sunday, matching adjust_to_next_working_day from the source
// engine. Used by the daily bucket calculation and by mid-period bars
// whose Friday-night session crosses the weekend.
func AdjustToNextWorkingDay(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
