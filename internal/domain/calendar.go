package domain

import "time"

// DateLayout is the wire format for calendar days
const DateLayout = "2006-01-02"

// DaysPerWeek is the length of a Monday–Sunday reporting week
const DaysPerWeek = 7

// CalendarDay returns the calendar day of t as observed in loc, encoded as
// midnight UTC. Lessons and reports store days in this form so that
// comparisons never depend on the server's zone.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a calendar day
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// WeekBounds returns the Monday and Sunday of the week containing day.
// day must already be a calendar day (see CalendarDay).
func WeekBounds(day time.Time) (start, end time.Time) {
	offset := (int(day.Weekday()) + 6) % DaysPerWeek // Monday = 0
	start = day.AddDate(0, 0, -offset)
	end = start.AddDate(0, 0, DaysPerWeek-1)
	return start, end
}

// DayOf drops the clock part of a value that already denotes a calendar day
// (for example one parsed with ParseDay), keeping its year, month and day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
