package state

import (
	"context"
	"strings"
	"time"

	"classcal/internal/ics"
	"classcal/internal/model"
)

var testLoc = time.FixedZone("CET", 3600)

func feed(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func vevent(start, end, summary, description string) []string {
	return []string{
		"BEGIN:VEVENT",
		"DTSTART:" + start,
		"DTEND:" + end,
		"SUMMARY:" + summary,
		"DESCRIPTION:" + description,
		"END:VEVENT",
	}
}

func calendar(events ...[]string) string {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0"}
	for _, ev := range events {
		lines = append(lines, ev...)
	}
	return feed(append(lines, "END:VCALENDAR")...)
}

var twoCourseFeed = calendar(
	vevent("20240115T080000", "20240115T094500", "Algo", "INF1-TD-G1-01"),
	vevent("20240116T100000", "20240116T114500", "Réseaux", "INF1-CM-G2-03"),
)

func lesson(summary string, start, end time.Time) model.Event {
	return model.Event{Summary: summary, Start: start, End: end}
}

// stubFetcher answers FetchOne from a fixed body or error.
type stubFetcher struct {
	body []byte
	err  error
	urls []string
}

func (s *stubFetcher) FetchOne(_ context.Context, src ics.Source) (ics.FetchResult, error) {
	s.urls = append(s.urls, src.URL)
	if s.err != nil {
		return ics.FetchResult{}, s.err
	}
	return ics.FetchResult{Source: src, Body: s.body}, nil
}
