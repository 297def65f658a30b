package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDayUsesLocation(t *testing.T) {
	// 22:30 UTC on a Sunday is already Monday three hours east.
	instant := time.Date(2026, 10, 11, 22, 30, 0, 0, time.UTC)
	east := time.FixedZone("UTC+3", 3*60*60)

	assert.Equal(t, time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC), CalendarDay(instant, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), CalendarDay(instant, east))
	assert.Equal(t, CalendarDay(instant, time.UTC), CalendarDay(instant, nil))
}

func TestWeekBounds(t *testing.T) {
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	for d := 0; d < DaysPerWeek; d++ {
		day := monday.AddDate(0, 0, d)
		start, end := WeekBounds(day)
		assert.Equal(t, monday, start, "start for %s", day.Weekday())
		assert.Equal(t, sunday, end, "end for %s", day.Weekday())
	}

	start, _ := WeekBounds(sunday.AddDate(0, 0, 1))
	assert.Equal(t, monday.AddDate(0, 0, 7), start)
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDay("28/02/2026")
	assert.Error(t, err)
}

func TestDayOfKeepsWallDate(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*60*60)
	late := time.Date(2026, 10, 12, 23, 15, 0, 0, west)

	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), DayOf(late))
}
