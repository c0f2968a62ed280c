package schedule

import (
	"slices"
	"time"

	"classcal/internal/course"
	"classcal/internal/model"
)

// FilterForDay returns the selected events active on day, sorted by start
// (stable, so ties keep parse order). An event is active when it starts at
// or before 23:59:59 and ends at or after 00:00:00 of that day, which keeps
// multi-day and zero-length events visible on every day they touch.
func FilterForDay(events []model.Event, day time.Time, sel course.Selection) []model.Event {
	out := make([]model.Event, 0)
	if len(events) == 0 || sel.IsEmpty() {
		return out
	}

	dayStart, dayEnd := StartOfDay(day), EndOfDay(day)
	for _, ev := range events {
		if ev.Start.After(dayEnd) || ev.End.Before(dayStart) {
			continue
		}
		if !sel.Matches(course.IdentifiersOf(ev)) {
			continue
		}
		out = append(out, ev)
	}

	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// FilterSelected returns every selected event regardless of date, sorted by
// start.
func FilterSelected(events []model.Event, sel course.Selection) []model.Event {
	out := make([]model.Event, 0)
	if sel.IsEmpty() {
		return out
	}
	for _, ev := range events {
		if sel.Matches(course.IdentifiersOf(ev)) {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Start.Compare(b.Start)
	})
	return out
}
