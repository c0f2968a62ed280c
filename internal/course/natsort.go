package course

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics, collate.IgnoreWidth)
}

// collators hands out Collators to concurrent callers; a Collator keeps
// per-call buffers and must not be shared.
var collators = sync.Pool{
	New: func() any { return newCollator() },
}

// Compare orders identifiers naturally: both strings are split into maximal
// runs of ASCII digits and non-digits, digit runs compare by numeric value,
// other runs compare case- and accent-insensitively, and when one token list
// is a prefix of the other the shorter one comes first.
func Compare(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return compare(c, a, b)
}

// Sort returns a naturally sorted copy of ids. The sort is stable.
func Sort(ids []string) []string {
	out := slices.Clone(ids)
	if out == nil {
		out = []string{}
	}
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	slices.SortStableFunc(out, func(a, b string) int {
		return compare(c, a, b)
	})
	return out
}

func compare(c *collate.Collator, a, b string) int {
	at, bt := tokenize(a), tokenize(b)
	n := min(len(at), len(bt))
	for i := 0; i < n; i++ {
		x, y := at[i], bt[i]
		if x == y {
			continue
		}
		if isDigits(x) && isDigits(y) {
			if d := compareNumeric(x, y); d != 0 {
				return d
			}
			continue
		}
		if d := c.CompareString(x, y); d != 0 {
			return d
		}
	}
	return len(at) - len(bt)
}

func tokenize(s string) []string {
	var tokens []string
	start := 0
	for i := 1; i <= len(s); i++ {
		if i == len(s) || isDigit(s[i]) != isDigit(s[start]) {
			tokens = append(tokens, s[start:i])
			start = i
		}
	}
	return tokens
}

// compareNumeric compares two digit runs by value without overflowing.
func compareNumeric(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if len(x) != len(y) {
		return len(x) - len(y)
	}
	return strings.Compare(x, y)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isDigits(s string) bool {
	return s != "" && isDigit(s[0])
}
