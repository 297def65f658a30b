package service

import (
	"context"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
)

// StreakCalculator counts consecutive trained weeks
type StreakCalculator struct {
	lessons domain.LessonCounter
}

func NewStreakCalculator(lessons domain.LessonCounter) *StreakCalculator {
	return &StreakCalculator{lessons: lessons}
}

// ComputeStreak walks back one week at a time from the week containing
// weekStart and returns how many weeks in a row, current week included, hold
// at least one lesson. The walk stops at the first empty week and never looks
// further back than domain.MaxStreakWeeks weeks.
func (c *StreakCalculator) ComputeStreak(ctx context.Context, ownerID string, weekStart time.Time) (int, error) {
	start, end := domain.WeekBounds(domain.DayOf(weekStart))

	streak := 0
	for i := 0; i < domain.MaxStreakWeeks; i++ {
		n, err := c.lessons.CountLessons(ctx, ownerID, start, end)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		streak++
		start = start.AddDate(0, 0, -domain.DaysPerWeek)
		end = end.AddDate(0, 0, -domain.DaysPerWeek)
	}
	return streak, nil
}
