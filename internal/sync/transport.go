package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcus/agriscan/internal/syncclient"
)

// HTTPTransport delivers through the action intake endpoint.
func HTTPTransport(c *syncclient.Client) Transport {
	return TransportFunc(func(ctx context.Context, d Delivery) error {
		_, err := c.PushAction(ctx, d.IdempotencyKey, &syncclient.ActionRequest{
			Action:    d.Action,
			Payload:   d.Payload,
			CreatedAt: d.EnqueuedAt.UTC().Format(time.RFC3339Nano),
			Attempt:   d.Attempt,
		})
		return err
	})
}

// LogTransport accepts every action and only logs it. It stands in when
// no remote is configured.
type LogTransport struct{}

func (LogTransport) Deliver(_ context.Context, d Delivery) error {
	slog.Info("sync: no remote configured, accepting locally",
		"action", d.Action, "item", d.ItemID, "key", d.IdempotencyKey)
	return nil
}
