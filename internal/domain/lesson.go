package domain

import (
	"time"
)

// Lesson is one attendance event consuming one credit from a package.
// At most one lesson exists per (OwnerID, Date).
type Lesson struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	PackageID  string    `json:"package_id" bson:"package_id"`
	OwnerID    string    `json:"owner_id" bson:"owner_id"` // Mirrors the package owner
	Date       time.Time `json:"date" bson:"date"`         // Calendar day, midnight UTC
	Notes      string    `json:"notes,omitempty" bson:"notes,omitempty"`
	ClientID   string    `json:"client_id,omitempty" bson:"client_id,omitempty"` // ULID from an optimistic client view
	RecordedBy string    `json:"recorded_by" bson:"recorded_by"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// AttendanceInput carries one "mark lesson done" request
type AttendanceInput struct {
	PackageID  string
	OwnerID    string
	Date       time.Time
	Notes      string
	ClientID   string
	RecordedBy string
}

// AttendanceResult is returned after a lesson is committed
type AttendanceResult struct {
	LessonID  string      `json:"lesson_id"`
	ClientID  string      `json:"client_id,omitempty"`
	Remaining int         `json:"remaining"`
	Level     CreditLevel `json:"level"`
	Status    string      `json:"status"`
}
