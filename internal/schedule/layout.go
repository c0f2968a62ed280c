package schedule

import (
	"fmt"
	"strings"
	"time"

	"classcal/internal/course"
	"classcal/internal/model"
)

// Policy selects how a day's events are grouped into side-by-side columns.
type Policy int

const (
	// ExactStart groups events that start in the same minute.
	ExactStart Policy = iota
	// ChainedOverlap scans start-sorted events and lets an event join the
	// most recent group when it starts before that group's latest end.
	// Chains are not checked pairwise: A overlapping B and B overlapping C
	// puts A and C in one group even when they never overlap.
	ChainedOverlap
)

func (p Policy) String() string {
	switch p {
	case ChainedOverlap:
		return "chained"
	default:
		return "exact"
	}
}

// ParsePolicy maps a config value onto a Policy. Empty means ExactStart.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return ExactStart, nil
	case "chained":
		return ChainedOverlap, nil
	default:
		return ExactStart, fmt.Errorf("unknown grouping policy %q (want exact or chained)", s)
	}
}

// LayoutOverlaps assigns each event an equal-width column inside its group:
// member i of a group of n gets Left = i*100/n and Width = 100/n. Events are
// expected sorted by start (FilterForDay output). The result has the same
// length and order as events; Top/Height are left at zero.
func LayoutOverlaps(events []model.Event, policy Policy) []model.PlacedEvent {
	placed := make([]model.PlacedEvent, len(events))
	for i, ev := range events {
		placed[i] = model.PlacedEvent{Event: ev}
	}

	for g, members := range groupEvents(events, policy) {
		n := float64(len(members))
		for i, idx := range members {
			placed[idx].Left = float64(i) * 100 / n
			placed[idx].Width = 100 / n
			placed[idx].Group = g
		}
	}
	return placed
}

// groupEvents returns groups as lists of indices into events, groups in
// order of first appearance and members in input order.
func groupEvents(events []model.Event, policy Policy) [][]int {
	var groups [][]int
	if policy == ChainedOverlap {
		var groupEnd time.Time
		for i, ev := range events {
			if len(groups) > 0 && ev.Start.Before(groupEnd) {
				last := len(groups) - 1
				groups[last] = append(groups[last], i)
				if ev.End.After(groupEnd) {
					groupEnd = ev.End
				}
				continue
			}
			groups = append(groups, []int{i})
			groupEnd = ev.End
		}
		return groups
	}

	byMinute := make(map[int64]int)
	for i, ev := range events {
		key := ev.Start.Truncate(time.Minute).Unix()
		g, ok := byMinute[key]
		if !ok {
			g = len(groups)
			byMinute[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// Window is the visible part of a day, in minutes after midnight.
type Window struct {
	StartMinute int
	EndMinute   int
}

// DefaultWindow covers lesson slots starting 08:00 to 18:30, plus the last hour.
var DefaultWindow = Window{StartMinute: 8 * 60, EndMinute: 19*60 + 30}

// ParseWindow builds a Window from two "HH:MM" strings.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e <= s {
		return Window{}, fmt.Errorf("day window end %q must be after start %q", end, start)
	}
	return Window{StartMinute: s, EndMinute: e}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		if strings.TrimSpace(s) == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Vertical returns the Top and Height percentages of ev within w on day.
// The event is first clipped to the viewed day, then to the window.
func (w Window) Vertical(ev model.Event, day time.Time) (top, height float64) {
	span := float64(w.EndMinute - w.StartMinute)
	if span <= 0 {
		return 0, 0
	}

	dayStart := StartOfDay(day)
	nextDay := addDays(dayStart, 1)

	startMin := 0
	if ev.Start.After(dayStart) {
		s := ev.Start.In(dayStart.Location())
		startMin = s.Hour()*60 + s.Minute()
	}
	endMin := 24 * 60
	if ev.End.Before(nextDay) {
		e := ev.End.In(dayStart.Location())
		endMin = e.Hour()*60 + e.Minute()
		if ev.End.Before(dayStart) {
			endMin = 0
		}
	}

	top = clampPercent(float64(startMin-w.StartMinute) / span * 100)
	bottom := clampPercent(float64(endMin-w.StartMinute) / span * 100)
	if bottom < top {
		bottom = top
	}
	return top, bottom - top
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// LayoutDay filters events for day and sel, lays them out side by side with
// policy and positions them vertically inside w.
func LayoutDay(events []model.Event, day time.Time, sel course.Selection, policy Policy, w Window) []model.PlacedEvent {
	placed := LayoutOverlaps(FilterForDay(events, day, sel), policy)
	for i := range placed {
		placed[i].Top, placed[i].Height = w.Vertical(placed[i].Event, day)
	}
	return placed
}
