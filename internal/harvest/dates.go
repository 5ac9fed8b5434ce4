package harvest

import (
	"strings"
	"time"
)

// Date layouts observed across the listing sites: dotted day-first and ISO.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
}

// ParseDate attempts the known posting-date layouts against s. The second
// return value is false when no layout matches; callers must treat that as
// an unknown date, not as expired.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BeforeToday reports whether d falls on a calendar day strictly before
// now's day. Comparison is at date granularity so a deadline of today is
// still considered active.
func BeforeToday(d, now time.Time) bool {
	dy, dm, dd := d.Date()
	ny, nm, nd := now.Date()
	day := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return day.Before(today)
}
