package domain

import (
	"context"
	"time"
)

// Notification is a push message addressed to one or more members
type Notification struct {
	RecipientIDs []string  `json:"recipient_ids"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	LinkURL      string    `json:"link_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NotificationSink accepts notifications for best-effort delivery.
// Callers log a returned error and carry on.
type NotificationSink interface {
	Send(ctx context.Context, n Notification) error
}

// PushToken is a device registration a member's notifications are sent to
type PushToken struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	MemberID  string    `bson:"member_id" json:"member_id"`
	Token     string    `bson:"token" json:"token"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// PushTokenRepository resolves member ids to device tokens
type PushTokenRepository interface {
	Register(ctx context.Context, memberID, token string) error
	GetTokens(ctx context.Context, memberIDs []string) ([]string, error)
	RemoveTokens(ctx context.Context, tokens []string) error
}
