package schedule

import (
	"time"

	"classcal/internal/course"
	"classcal/internal/model"
)

// StepDay moves one day from `from` in direction dir (negative = backward,
// otherwise forward) and keeps going while the day reached is a Saturday or
// Sunday with no visible event. The result is midnight of that day.
func StepDay(events []model.Event, from time.Time, sel course.Selection, dir int) time.Time {
	step := 1
	if dir < 0 {
		step = -1
	}
	d := addDays(StartOfDay(from), step)
	// A weekend is at most two days long, so this loop runs at most twice.
	for isWeekend(d) && len(FilterForDay(events, d, sel)) == 0 {
		d = addDays(d, step)
	}
	return d
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
