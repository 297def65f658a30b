package notification

import (
	"context"
	"log"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
)

// LogSink writes notifications to the log. It stands in for push delivery
// when Firebase is not configured.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, n domain.Notification) error {
	log.Printf("[Notification] to=%v title=%q message=%q link=%s", n.RecipientIDs, n.Title, n.Message, n.LinkURL)
	return nil
}
