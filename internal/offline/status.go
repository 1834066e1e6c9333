package offline

import (
	"context"
	"time"

	"github.com/marcus/agriscan/internal/capacity"
	"github.com/marcus/agriscan/internal/db"
	agsync "github.com/marcus/agriscan/internal/sync"
)

// Status is a read-only snapshot for indicators and dashboards.
type Status struct {
	StorageDisabled bool                `json:"storage_disabled"`
	DisabledReason  string              `json:"disabled_reason,omitempty"`
	Online          bool                `json:"online"`
	LastChange      time.Time           `json:"last_change,omitzero"`
	Scans           int                 `json:"scans"`
	Unsynced        int                 `json:"unsynced"`
	Pending         int                 `json:"pending"`
	Usage           capacity.Usage      `json:"usage"`
	LastDrain       *agsync.DrainRecord `json:"last_drain,omitempty"`
	Level           int                 `json:"level"`
	Points          int                 `json:"points"`
}

// Status gathers counts, usage and connectivity. Pieces that fail to load
// are left zero; only a failure to count scans is returned.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	st := Status{
		Online:     m.net.Online(),
		LastChange: m.net.LastChange(),
		LastDrain:  m.coord.Last(),
		Level:      1,
	}
	if err := m.Disabled(); err != nil {
		st.StorageDisabled = true
		st.DisabledReason = err.Error()
		st.Usage = capacity.Unknown
		return st, nil
	}

	n, err := m.store.Count(ctx, db.Scans)
	if err != nil {
		return st, err
	}
	st.Scans = n
	if n, err := m.store.CountUnsynced(ctx); err == nil {
		st.Unsynced = n
	}
	if n, err := m.store.Count(ctx, db.SyncQueue); err == nil {
		st.Pending = n
	}
	st.Usage = m.capacity.Usage(ctx)
	if s, err := m.tracker.State(ctx); err == nil {
		st.Level = s.Level
		st.Points = s.TotalPoints
	}
	return st, nil
}
