package notification

import (
	"context"
	"log"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
)

const (
	defaultPollTimeout = 2 * time.Second
	deliveryTimeout    = 10 * time.Second
	errorBackoff       = time.Second
	// BRPOP timeouts have one-second resolution
	drainPollTimeout   = time.Second
)

// Dispatcher moves notifications from the outbox to a delivery sink
type Dispatcher struct {
	outbox      *RedisOutbox
	sink        domain.NotificationSink
	pollTimeout time.Duration
}

func NewDispatcher(outbox *RedisOutbox, sink domain.NotificationSink) *Dispatcher {
	return &Dispatcher{
		outbox:      outbox,
		sink:        sink,
		pollTimeout: defaultPollTimeout,
	}
}

// Run delivers notifications until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) {
	log.Println("[Dispatcher] Started")
	for {
		if ctx.Err() != nil {
			log.Println("[Dispatcher] Stopped")
			return
		}

		n, err := d.outbox.Pop(ctx, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Printf("[Dispatcher] Outbox read failed: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		if n == nil {
			continue
		}
		d.deliver(ctx, *n)
	}
}

// Drain delivers everything currently queued and returns how many
// notifications were taken off the outbox.
func (d *Dispatcher) Drain(ctx context.Context) (int, error) {
	taken := 0
	for {
		n, err := d.outbox.Pop(ctx, drainPollTimeout)
		if err != nil {
			return taken, err
		}
		if n == nil {
			return taken, nil
		}
		taken++
		d.deliver(ctx, *n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if err := d.sink.Send(sendCtx, n); err != nil {
		log.Printf("[Dispatcher] Delivery to %v failed: %v", n.RecipientIDs, err)
		if dlErr := d.outbox.DeadLetter(sendCtx, n); dlErr != nil {
			log.Printf("[Dispatcher] Dead-letter write failed: %v", dlErr)
		}
	}
}
