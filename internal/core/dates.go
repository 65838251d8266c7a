package core

import (
	"strings"
	"time"
)

// ISODate is the wire layout of dates in the hosted service.
const ISODate = "2006-01-02"

// DatePart strips a time component from an ISO date or date-time string.
func DatePart(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i >= 0 {
		s = s[:i]
	}
	return s
}

// ParseDate parses the calendar date of an ISO date or date-time string.
// The result is at midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	d := DatePart(s)
	if d == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(ISODate, d)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Today returns now's calendar date as an ISO date string.
func Today(now time.Time) string {
	return now.Format(ISODate)
}

// FirstOfMonth returns the first day of now's month as an ISO date string.
func FirstOfMonth(now time.Time) string {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(ISODate)
}

// WeekBounds returns Monday 00:00 and the following Monday for the ISO week
// containing now, both in now's location.
func WeekBounds(now time.Time) (time.Time, time.Time) {
	offset := (int(now.Weekday()) + 6) % 7
	start := time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 7)
}
