// Package capacity reports how full the local scan store's storage is.
package capacity

import (
	"context"
	"log/slog"

	"github.com/marcus/agriscan/internal/db"
)

// HighUtilizationPercent is the usage above which eviction should run.
const HighUtilizationPercent = 80.0

// Usage is a point-in-time storage snapshot. When Known is false the host
// could not say how much space there is and the numbers are zero.
type Usage struct {
	UsedBytes      int64   `json:"used_bytes"`
	QuotaBytes     int64   `json:"quota_bytes"`
	PercentageUsed float64 `json:"percentage_used"`
	Known          bool    `json:"known"`
}

// Unknown is the snapshot returned when no source can measure usage.
var Unknown = Usage{}

// NewUsage builds a known snapshot, or Unknown when quota is not positive.
func NewUsage(used, quota int64) Usage {
	if quota <= 0 {
		return Unknown
	}
	return Usage{
		UsedBytes:      used,
		QuotaBytes:     quota,
		PercentageUsed: float64(used) / float64(quota) * 100,
		Known:          true,
	}
}

// HighUtilization reports whether u is known and above the threshold.
// Unknown usage never counts as high.
func HighUtilization(u Usage) bool {
	return u.Known && u.PercentageUsed > HighUtilizationPercent
}

// Source measures storage. ok is false when it cannot tell.
type Source interface {
	Usage(ctx context.Context) (u Usage, ok bool, err error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Usage, bool, error)

func (f SourceFunc) Usage(ctx context.Context) (Usage, bool, error) { return f(ctx) }

// Monitor asks its sources in order and returns the first known answer.
type Monitor struct {
	sources []Source
}

// New returns a monitor over the given sources.
func New(sources ...Source) *Monitor {
	return &Monitor{sources: sources}
}

// ForStore returns the usual monitor for a store: the store's own quota
// first, then the filesystem holding it.
func ForStore(store *db.Store) *Monitor {
	return New(StoreSource{Store: store}, FilesystemSource{Store: store})
}

// Usage never fails: source errors are logged and treated as unknown.
func (m *Monitor) Usage(ctx context.Context) Usage {
	for _, src := range m.sources {
		u, ok, err := src.Usage(ctx)
		if err != nil {
			slog.Debug("capacity: source failed", "err", err)
			continue
		}
		if ok {
			return u
		}
	}
	return Unknown
}

// StoreSource reads usage from the store's page accounting. It only knows
// the answer when the store was opened with a quota.
type StoreSource struct {
	Store *db.Store
}

func (s StoreSource) Usage(ctx context.Context) (Usage, bool, error) {
	u, err := s.Store.Usage(ctx)
	if err != nil {
		return Unknown, false, err
	}
	if u.QuotaBytes <= 0 {
		return Unknown, false, nil
	}
	return NewUsage(u.UsedBytes, u.QuotaBytes), true, nil
}

// FilesystemSource treats the database plus the free space left on its
// filesystem as the quota.
type FilesystemSource struct {
	Store *db.Store
}

func (s FilesystemSource) Usage(ctx context.Context) (Usage, bool, error) {
	free, ok, err := freeBytes(s.Store.BaseDir())
	if err != nil || !ok {
		return Unknown, false, err
	}
	u, err := s.Store.Usage(ctx)
	if err != nil {
		return Unknown, false, err
	}
	return NewUsage(u.UsedBytes, u.UsedBytes+free), true, nil
}
