package course

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldKey maps an identifier onto its case- and accent-insensitive form.
// A new transformer is built per call; transform chains are not safe for
// concurrent use.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Equal reports whether two identifiers are the same course, ignoring case
// and accents.
func Equal(a, b string) bool {
	return a == b || foldKey(a) == foldKey(b)
}

// Selection is the set of course identifiers the user wants to see.
// The zero value is an empty selection. A Selection is immutable; the
// With/Without helpers return modified copies.
type Selection struct {
	names []string
	keys  map[string]struct{}
}

// NewSelection builds a selection from names, dropping empty strings and
// case/accent-insensitive duplicates (first spelling wins).
func NewSelection(names ...string) Selection {
	s := Selection{keys: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		k := foldKey(n)
		if _, ok := s.keys[k]; ok {
			continue
		}
		s.keys[k] = struct{}{}
		s.names = append(s.names, n)
	}
	return s
}

// Len returns the number of selected identifiers.
func (s Selection) Len() int {
	return len(s.names)
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return len(s.names) == 0
}

// Names returns the selected identifiers in natural order.
func (s Selection) Names() []string {
	return Sort(s.names)
}

// Contains reports whether id is selected, ignoring case and accents.
func (s Selection) Contains(id string) bool {
	if len(s.keys) == 0 {
		return false
	}
	_, ok := s.keys[foldKey(id)]
	return ok
}

// Matches reports whether at least one of ids is selected. An event
// without identifiers never matches.
func (s Selection) Matches(ids []string) bool {
	for _, id := range ids {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// With returns a copy of s with ids added.
func (s Selection) With(ids ...string) Selection {
	return NewSelection(append(append([]string{}, s.names...), ids...)...)
}

// Without returns a copy of s with ids removed.
func (s Selection) Without(ids ...string) Selection {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[foldKey(id)] = struct{}{}
	}
	kept := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if _, ok := drop[foldKey(n)]; !ok {
			kept = append(kept, n)
		}
	}
	return NewSelection(kept...)
}

func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSelection(names...)
	return nil
}
