package domain

import (
	"time"
)

// Lesson package status constants
const (
	PackageStatusActive    = "active"
	PackageStatusCompleted = "completed"
	PackageStatusExpired   = "expired"
)

// Payment status constants
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// LessonPackage is a prepaid block of lesson credits owned by one member.
// UsedLessons never exceeds TotalLessons.
type LessonPackage struct {
	ID            string    `json:"id" bson:"_id,omitempty"`
	OwnerID       string    `json:"owner_id" bson:"owner_id"`
	TotalLessons  int       `json:"total_lessons" bson:"total_lessons"`
	UsedLessons   int       `json:"used_lessons" bson:"used_lessons"`
	StartDate     time.Time `json:"start_date" bson:"start_date"`
	ExpireDate    time.Time `json:"expire_date" bson:"expire_date"`
	Status        string    `json:"status" bson:"status"`                   // active, completed, expired
	Price         *float64  `json:"price,omitempty" bson:"price,omitempty"` // Optional
	PaymentStatus string    `json:"payment_status" bson:"payment_status"`   // paid, unpaid
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks the fields an administrator supplies when creating a package
func (p *LessonPackage) Validate() error {
	if p.OwnerID == "" || p.TotalLessons <= 0 {
		return ErrInvalidPackage
	}
	if p.UsedLessons < 0 || p.UsedLessons > p.TotalLessons {
		return ErrInvalidPackage
	}
	if !p.ExpireDate.IsZero() && p.ExpireDate.Before(p.StartDate) {
		return ErrInvalidPackage
	}
	switch p.PaymentStatus {
	case "", PaymentStatusPaid, PaymentStatusUnpaid:
	default:
		return ErrInvalidPackage
	}
	return nil
}

// PackageSummary is a package snapshot enriched with its derived credit state
type PackageSummary struct {
	Package   *LessonPackage `json:"package"`
	Remaining int            `json:"remaining"`
	Level     CreditLevel    `json:"level"`
}
