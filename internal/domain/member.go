package domain

import (
	"context"
	"time"
)

// Member is a trainee of the studio. Membership management lives outside the
// ledger; only the active roster is consumed here.
type Member struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MemberRepository provides the members the weekly report run covers
type MemberRepository interface {
	ListActiveOwners(ctx context.Context) ([]string, error)
}
