package ics

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	appLog "classcal/internal/log"
)

// zoneCache memoizes TZID lookups; a nil entry records a zone that failed
// to resolve so the tz database is not hit again for every event.
var zoneCache sync.Map // map[string]*time.Location

// ResolveDateTime converts a DATE or DATE-TIME value into a point in time
// expressed in loc (the viewer's zone). ok is false for empty or malformed
// values.
//
//   - 8 digits (DATE): midnight of that day in loc, tzid ignored.
//   - YYYYMMDDTHHMMSSZ: UTC, converted to loc.
//   - YYYYMMDDTHHMMSS with tzid: wall clock in tzid, converted to loc. If the
//     zone cannot be resolved the fields are read as loc wall clock instead.
//   - YYYYMMDDTHHMMSS without tzid: floating, read as loc wall clock.
func ResolveDateTime(value, tzid string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	value = stripSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if len(value) == 8 {
		y, m, d, ok := dateFields(value)
		if !ok {
			return time.Time{}, false
		}
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc), true
	}

	utc := strings.HasSuffix(value, "Z")
	if utc {
		value = value[:len(value)-1]
	}
	if len(value) != 15 || value[8] != 'T' {
		return time.Time{}, false
	}
	y, mo, d, ok := dateFields(value[:8])
	if !ok {
		return time.Time{}, false
	}
	h, mi, s, ok := clockFields(value[9:])
	if !ok {
		return time.Time{}, false
	}

	switch {
	case utc:
		return time.Date(y, time.Month(mo), d, h, mi, s, 0, time.UTC).In(loc), true
	case tzid != "":
		if zone := lookupZone(tzid); zone != nil {
			return time.Date(y, time.Month(mo), d, h, mi, s, 0, zone).In(loc), true
		}
	}
	return time.Date(y, time.Month(mo), d, h, mi, s, 0, loc), true
}

func lookupZone(tzid string) *time.Location {
	name := strings.Trim(strings.TrimSpace(tzid), `"`)
	if name == "" {
		return nil
	}
	if v, ok := zoneCache.Load(name); ok {
		return v.(*time.Location)
	}
	zone, err := time.LoadLocation(name)
	if err != nil {
		appLog.Debug("ics tzid not resolvable; treating as local", "tzid", name, "err", err)
		zone = nil
	}
	zoneCache.Store(name, zone)
	return zone
}

func dateFields(v string) (y, m, d int, ok bool) {
	y, ok1 := atoiDigits(v[0:4])
	m, ok2 := atoiDigits(v[4:6])
	d, ok3 := atoiDigits(v[6:8])
	return y, m, d, ok1 && ok2 && ok3
}

func clockFields(v string) (h, m, s int, ok bool) {
	h, ok1 := atoiDigits(v[0:2])
	m, ok2 := atoiDigits(v[2:4])
	s, ok3 := atoiDigits(v[4:6])
	return h, m, s, ok1 && ok2 && ok3
}

func atoiDigits(s string) (int, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
