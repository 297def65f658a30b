package domain

import (
	"time"
)

// HoursPerLesson is the duration credited for every recorded lesson
const HoursPerLesson = 1.0

// MaxStreakWeeks bounds the backward streak walk to one year
const MaxStreakWeeks = 52

// WeeklyReport is the derived engagement snapshot of one member for one
// Monday–Sunday week. It is unique on (OwnerID, WeekStart); regenerating a
// week overwrites the row in place.
type WeeklyReport struct {
	ID               string    `json:"id" bson:"_id,omitempty"`
	OwnerID          string    `json:"owner_id" bson:"owner_id"`
	WeekStart        time.Time `json:"week_start" bson:"week_start"`
	WeekEnd          time.Time `json:"week_end" bson:"week_end"`
	LessonsCount     int       `json:"lessons_count" bson:"lessons_count"`
	TotalHours       float64   `json:"total_hours" bson:"total_hours"`
	ConsecutiveWeeks int       `json:"consecutive_weeks" bson:"consecutive_weeks"`
	Message          string    `json:"message" bson:"message"`
	GeneratedAt      time.Time `json:"generated_at" bson:"generated_at"`
}

// BatchResult summarises one weekly report run
type BatchResult struct {
	RunID     string    `json:"run_id"`
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
	Succeeded int       `json:"generated"`
	Total     int       `json:"total"`
	Failed    []string  `json:"failed,omitempty"` // Owner IDs
}
