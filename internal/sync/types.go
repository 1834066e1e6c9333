// Package sync drains the local queue of pending actions to a remote.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrDeliveryFailed marks a delivery attempt that did not succeed,
// including one that ran past its deadline.
var ErrDeliveryFailed = errors.New("delivery failed")

// Delivery is one attempt to hand a queued action to the remote.
type Delivery struct {
	ItemID         int64
	Action         string
	Payload        json.RawMessage
	IdempotencyKey string
	EnqueuedAt     time.Time
	// Attempt is 1 for the first try.
	Attempt int
}

// Transport delivers actions. A nil error means the remote confirmed it.
// Implementations should honor ctx; the coordinator stops waiting at the
// deadline either way.
type Transport interface {
	Deliver(ctx context.Context, d Delivery) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, d Delivery) error

func (f TransportFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }

// Summary reports the outcome of one drain.
type Summary struct {
	Delivered int `json:"delivered"`
	Remaining int `json:"remaining"`
	// Halted is set when a delivery failed and the drain stopped there.
	Halted    bool   `json:"halted,omitempty"`
	LastError string `json:"last_error,omitempty"`
	// Busy is set when another process held the drain and nothing was tried.
	Busy bool `json:"busy,omitempty"`
}
