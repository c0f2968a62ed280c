package course

import (
	"regexp"

	"classcal/internal/model"
)

// codePattern matches structured course/group codes embedded in free text,
// e.g. INF1-TD-G1-01 or MAT2-CM-A-B-03: an uppercase head (optionally
// digit-suffixed), two to four uppercase inner groups, then -digits.
var codePattern = regexp.MustCompile(`[A-Z]+[0-9]*(?:-[A-Z]+[0-9]*){2,4}-[0-9]+`)

// ExtractCodes returns the course codes found in text, de-duplicated in
// first-seen order.
func ExtractCodes(text string) []string {
	if text == "" {
		return nil
	}
	matches := codePattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// IdentifiersOf returns the course identifiers of ev: the codes found in its
// description, else its summary, else nothing for untitled events. A value
// cached by Tag is returned as is.
func IdentifiersOf(ev model.Event) []string {
	if ev.Courses != nil {
		return ev.Courses
	}
	return compute(ev)
}

func compute(ev model.Event) []string {
	if codes := ExtractCodes(ev.Description); len(codes) > 0 {
		return codes
	}
	if ev.Summary != "" && ev.Summary != model.UntitledSummary {
		return []string{ev.Summary}
	}
	return []string{}
}

// Tag returns a copy of events with identifiers computed once per event.
func Tag(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	for i, ev := range events {
		ev.Courses = compute(ev)
		out[i] = ev
	}
	return out
}

// Universe returns every identifier used by events, de-duplicated and in
// natural order.
func Universe(events []model.Event) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, ev := range events {
		for _, id := range IdentifiersOf(ev) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			names = append(names, id)
		}
	}
	return Sort(names)
}
