package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/models"
)

// DefaultDeliveryTimeout bounds each delivery attempt.
const DefaultDeliveryTimeout = 10 * time.Second

// Coordinator drains the sync queue through a Transport. Items go out
// oldest first; the first failure stops the drain so nothing is delivered
// ahead of an earlier item. At most one drain runs at a time, across
// processes sharing the data dir as well as within this one.
type Coordinator struct {
	store     *db.Store
	transport Transport
	timeout   time.Duration

	flight singleflight.Group
	last   atomic.Pointer[DrainRecord]
}

// DrainRecord is the most recent drain result, kept for status displays.
type DrainRecord struct {
	Summary
	At time.Time `json:"at"`
}

// New returns a coordinator. A timeout of zero uses DefaultDeliveryTimeout.
func New(store *db.Store, transport Transport, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Coordinator{store: store, transport: transport, timeout: timeout}
}

// Drain delivers pending items until the queue is empty or a delivery
// fails. Delivery failures are absorbed into the summary; only storage
// errors and cancellation of ctx are returned.
//
// Callers that arrive while a drain is running wait for it and share its
// result instead of starting another. When a different process (or a
// different Store on the same dir) is draining, Drain returns at once with
// Summary.Busy set.
func (c *Coordinator) Drain(ctx context.Context) (Summary, error) {
	v, err, shared := c.flight.Do("drain", func() (any, error) {
		return c.drain(ctx)
	})
	if shared {
		slog.Debug("sync: joined in-flight drain")
	}
	sum, _ := v.(Summary)
	return sum, err
}

// Last returns the most recent drain, or nil before the first one.
func (c *Coordinator) Last() *DrainRecord {
	return c.last.Load()
}

func (c *Coordinator) drain(ctx context.Context) (Summary, error) {
	var sum Summary
	lock, err := c.store.TryLockDrain(ctx)
	if err != nil {
		return sum, fmt.Errorf("acquire drain lock: %w", err)
	}
	if lock == nil {
		slog.Debug("sync: another process is draining")
		sum.Busy = true
		return c.finish(ctx, sum, nil)
	}
	defer lock.Release()

	items, err := c.store.ListSyncQueue(ctx)
	if err != nil {
		return sum, fmt.Errorf("read sync queue: %w", err)
	}

	for _, item := range items {
		derr := c.deliver(ctx, item)
		if ctx.Err() != nil {
			// Shutting down; the attempt does not count against the item
			return c.finish(ctx, sum, ctx.Err())
		}
		if derr != nil {
			retries, err := c.store.IncrementRetries(ctx, item.ID)
			if err != nil {
				return c.finish(ctx, sum, fmt.Errorf("record failed attempt: %w", err))
			}
			slog.Warn("sync: delivery failed, halting drain",
				"item", item.ID, "action", item.Action, "retries", retries, "err", derr)
			sum.Halted = true
			sum.LastError = derr.Error()
			break
		}
		if err := c.store.CompleteSyncItem(ctx, item); err != nil {
			return c.finish(ctx, sum, fmt.Errorf("complete item %d: %w", item.ID, err))
		}
		sum.Delivered++
		slog.Debug("sync: delivered", "item", item.ID, "action", item.Action)
	}

	return c.finish(ctx, sum, nil)
}

// finish counts what is left and records the drain.
func (c *Coordinator) finish(ctx context.Context, sum Summary, err error) (Summary, error) {
	if n, cerr := c.store.Count(context.WithoutCancel(ctx), db.SyncQueue); cerr == nil {
		sum.Remaining = n
	} else if err == nil {
		err = fmt.Errorf("count sync queue: %w", cerr)
	}
	c.last.Store(&DrainRecord{Summary: sum, At: time.Now()})
	if sum.Delivered > 0 || sum.Halted {
		slog.Info("sync: drain finished", "delivered", sum.Delivered, "remaining", sum.Remaining, "halted", sum.Halted)
	}
	return sum, err
}

// deliver runs one attempt under the per-delivery timeout.
func (c *Coordinator) deliver(ctx context.Context, item models.SyncItem) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	d := Delivery{
		ItemID:         item.ID,
		Action:         item.Action,
		Payload:        item.Payload,
		IdempotencyKey: item.IdempotencyKey,
		EnqueuedAt:     item.Timestamp,
		Attempt:        item.Retries + 1,
	}

	// Buffered so a transport that ignores ctx can still finish and exit
	done := make(chan error, 1)
	go func() { done <- c.transport.Deliver(ctx, d) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s after %v", ErrDeliveryFailed, item.Action, c.timeout)
	}
}
