package model

import "time"

// UntitledSummary is the placeholder summary for VEVENTs without SUMMARY.
// Events carrying it never contribute the summary as a course identifier.
const UntitledSummary = "Untitled"

// Event is one normalized VEVENT. Start/End are already expressed in the
// display timezone. End may precede Start; feeds are not trusted on that.
type Event struct {
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`

	// Courses caches the identifiers derived from Description/Summary.
	// nil means "not computed yet"; an empty non-nil slice means "none".
	Courses []string `json:"-"`
}

// Duration returns End-Start, which may be zero or negative.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// PlacedEvent is an Event annotated for side-by-side rendering within a day.
// All values are percentages.
type PlacedEvent struct {
	Event

	// Left/Width position the event horizontally inside its overlap group.
	Left  float64 `json:"left"`
	Width float64 `json:"width"`

	// Top/Height position the event vertically inside the visible window of
	// the viewed day, clipped to that day.
	Top    float64 `json:"top"`
	Height float64 `json:"height"`

	// Group is the index of the overlap group the event belongs to.
	Group int `json:"group"`
}
