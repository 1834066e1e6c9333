// Package evict bounds the scan history to the most recent records.
package evict

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/marcus/agriscan/internal/capacity"
	"github.com/marcus/agriscan/internal/db"
)

// MaxRetained is how many scans survive an eviction pass.
const MaxRetained = 1000

// Result describes one eviction pass.
type Result struct {
	Considered int             `json:"considered"`
	Evicted    int             `json:"evicted"`
	Usage      *capacity.Usage `json:"usage,omitempty"`
	Skipped    bool            `json:"skipped,omitempty"`
}

// Policy evicts old scans from a store.
type Policy struct {
	store    *db.Store
	capacity *capacity.Monitor
}

// New returns a policy for store. monitor may be nil when only the
// unconditional pass is used.
func New(store *db.Store, monitor *capacity.Monitor) *Policy {
	return &Policy{store: store, capacity: monitor}
}

// Run keeps the MaxRetained newest scans and deletes the rest. Newest is by
// timestamp; among equal timestamps the higher id is newer, so the oldest
// id goes first. It works on a snapshot taken at the start, so scans
// written during the pass are never touched.
func (p *Policy) Run(ctx context.Context) (Result, error) {
	keys, err := p.store.ListScanKeys(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot scans: %w", err)
	}
	res := Result{Considered: len(keys)}
	victims := selectEvictions(keys, MaxRetained)
	if len(victims) == 0 {
		return res, nil
	}

	n, err := p.store.DeleteScans(ctx, victims)
	if err != nil {
		return res, fmt.Errorf("delete %d scans: %w", len(victims), err)
	}
	res.Evicted = n
	slog.Info("evict: pruned scan history", "evicted", n, "kept", len(keys)-len(victims))
	return res, nil
}

// CheckCapacity runs an eviction pass only when storage is known to be
// above the high-water mark.
func (p *Policy) CheckCapacity(ctx context.Context) (Result, error) {
	if p.capacity == nil {
		return Result{Skipped: true}, nil
	}
	u := p.capacity.Usage(ctx)
	if !capacity.HighUtilization(u) {
		return Result{Skipped: true, Usage: &u}, nil
	}
	slog.Debug("evict: storage above threshold", "percent", u.PercentageUsed)
	res, err := p.Run(ctx)
	res.Usage = &u
	return res, err
}

// selectEvictions returns the ids that fall outside the keep newest.
func selectEvictions(keys []db.ScanKey, keep int) []int64 {
	if len(keys) <= keep {
		return nil
	}
	sorted := slices.Clone(keys)
	slices.SortStableFunc(sorted, func(a, b db.ScanKey) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	victims := make([]int64, 0, len(sorted)-keep)
	for _, k := range sorted[keep:] {
		victims = append(victims, k.ID)
	}
	return victims
}
