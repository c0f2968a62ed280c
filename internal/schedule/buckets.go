package schedule

import (
	"time"

	"classcal/internal/course"
	"classcal/internal/model"
)

// Buckets maps a day key (see DayKey) to the selected events covering that
// day. It backs the "has events" markers of the month view.
type Buckets map[string][]model.Event

// BuildDateBuckets adds every selected event to each day from its start date
// to its end date, both inclusive. Events without identifiers, or whose
// identifiers are all unselected, are skipped. An event whose end date is
// before its start date covers no day. Buckets are always rebuilt in full.
func BuildDateBuckets(events []model.Event, sel course.Selection) Buckets {
	buckets := make(Buckets)
	if sel.IsEmpty() {
		return buckets
	}

	for _, ev := range events {
		if !sel.Matches(course.IdentifiersOf(ev)) {
			continue
		}
		// Bucket in the start's zone so both ends land on the same calendar.
		last := StartOfDay(ev.End.In(ev.Start.Location()))
		for d := StartOfDay(ev.Start); !d.After(last); d = addDays(d, 1) {
			key := DayKey(d)
			buckets[key] = append(buckets[key], ev)
		}
	}
	return buckets
}

// Has reports whether day has at least one selected event.
func (b Buckets) Has(day time.Time) bool {
	return len(b[DayKey(day)]) > 0
}

// On returns the bucketed events of day.
func (b Buckets) On(day time.Time) []model.Event {
	return b[DayKey(day)]
}
