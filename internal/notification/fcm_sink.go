package notification

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"google.golang.org/api/option"
)

// FCM accepts at most 500 tokens per multicast
const maxMulticastTokens = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSink delivers notifications as Firebase Cloud Messaging web pushes to
// every device registered by the recipients.
type FCMSink struct {
	sender multicastSender
	tokens domain.PushTokenRepository
}

// InitFirebase initializes the Firebase Admin SDK from service account parts
func InitFirebase(ctx context.Context, projectID, privateKeyB64, clientEmail string) (*firebase.App, error) {
	privateKey, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode firebase private key: %w", err)
	}

	credentials, err := json.Marshal(map[string]interface{}{
		"type":         "service_account",
		"project_id":   projectID,
		"private_key":  string(privateKey),
		"client_email": clientEmail,
	})
	if err != nil {
		return nil, err
	}

	return firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON(credentials))
}

func NewFCMSink(ctx context.Context, app *firebase.App, tokens domain.PushTokenRepository) (*FCMSink, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &FCMSink{sender: client, tokens: tokens}, nil
}

func (s *FCMSink) Send(ctx context.Context, n domain.Notification) error {
	tokens, err := s.tokens.GetTokens(ctx, n.RecipientIDs)
	if err != nil {
		return fmt.Errorf("load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	delivered := 0
	var stale []string
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := min(start+maxMulticastTokens, len(tokens))
		batch := tokens[start:end]

		resp, err := s.sender.SendEachForMulticast(ctx, buildMulticast(n, batch))
		if err != nil {
			return fmt.Errorf("fcm multicast: %w", err)
		}
		delivered += resp.SuccessCount

		for i, r := range resp.Responses {
			if !r.Success && messaging.IsUnregistered(r.Error) {
				stale = append(stale, batch[i])
			}
		}
	}

	if len(stale) > 0 {
		if err := s.tokens.RemoveTokens(ctx, stale); err != nil {
			log.Printf("[FCM] Failed to prune %d stale tokens: %v", len(stale), err)
		}
	}
	if delivered == 0 {
		return fmt.Errorf("fcm: none of %d devices accepted the message", len(tokens))
	}
	return nil
}

func buildMulticast(n domain.Notification, tokens []string) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
	}
	if n.LinkURL != "" {
		msg.Data = map[string]string{"link": n.LinkURL}
		msg.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: n.LinkURL},
		}
	}
	return msg
}
