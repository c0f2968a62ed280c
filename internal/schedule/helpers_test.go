package schedule

import (
	"time"

	"classcal/internal/model"
)

var testLoc = time.FixedZone("CET", 3600)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, 0, 0, testLoc)
}

func lesson(summary string, start, end time.Time) model.Event {
	return model.Event{Summary: summary, Start: start, End: end}
}
