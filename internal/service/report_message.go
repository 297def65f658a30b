package service

import (
	"fmt"
)

// messageRule picks a weekly message. Rules are checked top to bottom and the
// first match wins, so the same counts always give the same text.
type messageRule struct {
	minLessons int
	maxLessons int // 0 = unbounded
	minStreak  int
	format     func(lessons, streak int) string
}

var weeklyMessageRules = []messageRule{
	{
		maxLessons: -1, // only lessons == 0
		format: func(_, _ int) string {
			return "No lessons this week. One session is all it takes to start a new streak."
		},
	},
	{
		minLessons: 3, minStreak: 8,
		format: func(lessons, streak int) string {
			return fmt.Sprintf("%s this week and %s in a row. That is real consistency, keep it going!",
				plural(lessons, "lesson"), plural(streak, "week"))
		},
	},
	{
		minLessons: 1, minStreak: 4,
		format: func(lessons, streak int) string {
			return fmt.Sprintf("%d-week streak! %s this week kept the run alive.",
				streak, plural(lessons, "lesson"))
		},
	},
	{
		minLessons: 3, minStreak: 1,
		format: func(lessons, streak int) string {
			return fmt.Sprintf("Great week: %s. Your streak is at %s.",
				plural(lessons, "lesson"), plural(streak, "week"))
		},
	},
	{
		minLessons: 1, maxLessons: 2, minStreak: 1,
		format: func(lessons, streak int) string {
			if streak == 1 {
				return fmt.Sprintf("You trained this week (%s). Come back next week to start a streak.",
					plural(lessons, "lesson"))
			}
			return fmt.Sprintf("%s this week, %s in a row. Nice work.",
				plural(lessons, "lesson"), plural(streak, "week"))
		},
	},
}

func (r messageRule) matches(lessons, streak int) bool {
	if r.maxLessons < 0 {
		return lessons == 0
	}
	if lessons < r.minLessons || streak < r.minStreak {
		return false
	}
	return r.maxLessons == 0 || lessons <= r.maxLessons
}

// ComposeWeeklyMessage returns the motivational text for a week with the
// given lesson count and streak.
func ComposeWeeklyMessage(lessons, streak int) string {
	for _, rule := range weeklyMessageRules {
		if rule.matches(lessons, streak) {
			return rule.format(lessons, streak)
		}
	}
	return fmt.Sprintf("%s this week.", plural(lessons, "lesson"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
