package schedule

import "time"

// MonthGridCells is the fixed number of cells in a month view (6 weeks).
const MonthGridCells = 42

// Cell is one day of the month view.
type Cell struct {
	Date      string `json:"date"`
	Day       int    `json:"day"`
	InMonth   bool   `json:"in_month"`
	Today     bool   `json:"today"`
	Selected  bool   `json:"selected"`
	HasEvents bool   `json:"has_events"`
}

// MonthGrid lays out the 42 days around month, starting on weekStart of the
// week containing the 1st. month, selected and today are compared by
// calendar day in month's location.
func MonthGrid(month, selected, today time.Time, weekStart time.Weekday, buckets Buckets) []Cell {
	loc := month.Location()
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, loc)
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	start := addDays(first, -offset)

	selectedKey := DayKey(selected.In(loc))
	todayKey := DayKey(today.In(loc))

	cells := make([]Cell, 0, MonthGridCells)
	for i := 0; i < MonthGridCells; i++ {
		d := addDays(start, i)
		key := DayKey(d)
		cells = append(cells, Cell{
			Date:      key,
			Day:       d.Day(),
			InMonth:   d.Month() == first.Month(),
			Today:     key == todayKey,
			Selected:  key == selectedKey,
			HasEvents: buckets.Has(d),
		})
	}
	return cells
}
