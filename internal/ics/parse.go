package ics

import (
	"strings"
	"time"

	appLog "classcal/internal/log"
	"classcal/internal/model"
)

const (
	beginEvent = "BEGIN:VEVENT"
	endEvent   = "END:VEVENT"

	propDtStart     = "DTSTART"
	propDtEnd       = "DTEND"
	propSummary     = "SUMMARY"
	propLocation    = "LOCATION"
	propDescription = "DESCRIPTION"
)

// Parser turns raw feed text into normalized events. Location is the
// display timezone every start/end is converted to; nil means time.Local.
type Parser struct {
	Location *time.Location
}

// ParseStats reports what a Parse call did with the blocks it saw.
type ParseStats struct {
	Blocks  int
	Events  int
	Dropped int
}

// rawTime keeps a DTSTART/DTEND value together with its TZID parameter.
type rawTime struct {
	value string
	tzid  string
	set   bool
}

// accumulator collects the properties of the VEVENT currently being read.
type accumulator struct {
	start rawTime
	end   rawTime
	props map[string]string
}

func (a *accumulator) reset() {
	a.start = rawTime{}
	a.end = rawTime{}
	clear(a.props)
}

// Parse parses text with the local timezone as display zone.
func Parse(text string) []model.Event {
	return Parser{}.Parse(text)
}

// Parse unfolds text and extracts one Event per VEVENT block that carries a
// resolvable DTSTART. Malformed blocks are dropped; Parse never fails.
func (p Parser) Parse(text string) []model.Event {
	events, _ := p.ParseWithStats(text)
	return events
}

// ParseWithStats is Parse plus counters for logging and metrics.
//
// The scan is a single linear pass:
//   - BEGIN:VEVENT opens an accumulator, END:VEVENT closes it;
//   - inside a block, NAME[;PARAMS]:VALUE lines are split at the first colon;
//   - DTSTART/DTEND keep their raw value and TZID, everything else is
//     unescaped and last-write-wins;
//   - lines outside a block or without a colon are ignored.
func (p Parser) ParseWithStats(text string) ([]model.Event, ParseStats) {
	var stats ParseStats
	events := make([]model.Event, 0)
	if text == "" {
		return events, stats
	}

	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	cur := accumulator{props: make(map[string]string)}
	inEvent := false

	for _, line := range strings.Split(Unfold(text), "\n") {
		switch line {
		case beginEvent:
			inEvent = true
			cur.reset()
			continue
		case endEvent:
			if inEvent {
				stats.Blocks++
				if ev, ok := cur.build(loc); ok {
					events = append(events, ev)
				} else {
					stats.Dropped++
				}
			}
			inEvent = false
			cur.reset()
			continue
		}
		if !inEvent {
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx == -1 {
			continue
		}
		name, tzid := splitName(line[:idx])
		value := Unescape(line[idx+1:])

		switch name {
		case propDtStart:
			cur.start = rawTime{value: value, tzid: tzid, set: true}
		case propDtEnd:
			cur.end = rawTime{value: value, tzid: tzid, set: true}
		default:
			cur.props[name] = value
		}
	}

	stats.Events = len(events)
	appLog.Debug("ics parse completed", "blocks", stats.Blocks, "event_count", stats.Events, "dropped", stats.Dropped)
	return events, stats
}

func (a *accumulator) build(loc *time.Location) (model.Event, bool) {
	if !a.start.set {
		return model.Event{}, false
	}
	start, ok := ResolveDateTime(a.start.value, a.start.tzid, loc)
	if !ok {
		appLog.Debug("ics vevent dropped: unresolvable DTSTART", "value", a.start.value, "tzid", a.start.tzid)
		return model.Event{}, false
	}

	end := start
	if a.end.set {
		if t, ok := ResolveDateTime(a.end.value, a.end.tzid, loc); ok {
			end = t
		}
	}

	summary := a.props[propSummary]
	if summary == "" {
		summary = model.UntitledSummary
	}

	return model.Event{
		Summary:     summary,
		Start:       start,
		End:         end,
		Location:    a.props[propLocation],
		Description: a.props[propDescription],
	}, true
}

// splitName separates "NAME;PARAM=..;PARAM=.." into the upper-cased name and
// the TZID parameter value, if any.
func splitName(raw string) (name, tzid string) {
	semi := strings.IndexByte(raw, ';')
	if semi == -1 {
		return strings.ToUpper(raw), ""
	}
	name = strings.ToUpper(raw[:semi])
	for _, param := range strings.Split(raw[semi+1:], ";") {
		k, v, found := strings.Cut(param, "=")
		if found && strings.EqualFold(strings.TrimSpace(k), "TZID") && v != "" {
			tzid = v
		}
	}
	return name, tzid
}
