package offline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/marcus/agriscan/internal/capacity"
	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/evict"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/netstate"
	"github.com/marcus/agriscan/internal/schedule"
	agsync "github.com/marcus/agriscan/internal/sync"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var day0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	store := db.New(t.TempDir(), db.Options{InMemory: true})
	t.Cleanup(func() { store.Close() })
	if opts.Now == nil {
		opts.Now = func() time.Time { return day0 }
	}
	m := New(store, opts)
	require.NoError(t, m.Initialize(context.Background()))
	return m
}

// recorder is a transport that remembers what it was given.
type recorder struct {
	got chan agsync.Delivery
}

func newRecorder() *recorder { return &recorder{got: make(chan agsync.Delivery, 64)} }

func (r *recorder) Deliver(_ context.Context, d agsync.Delivery) error {
	r.got <- d
	return nil
}

func TestRecordScan(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, Options{DisableScanWake: true})

	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Late Blight", Crop: "tomato", Accurate: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Scan.ID)
	require.False(t, res.Scan.Synced)
	require.Equal(t, models.ActionScanCreate, res.SyncItem.Action)
	require.Equal(t, res.Scan.ID, res.SyncItem.ScanID)
	require.NotEmpty(t, res.SyncItem.IdempotencyKey)
	require.Len(t, res.Unlocked, 1)
	require.Equal(t, "first-scan", res.Unlocked[0].ID)

	queue, err := m.SyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	require.Equal(t, models.ActionScanCreate, queue[0].Action)
	require.Equal(t, models.ActionAchievementSync, queue[1].Action)

	res, err = m.RecordScan(ctx, ScanInput{DiseaseLabel: "Late Blight"})
	require.NoError(t, err)
	require.Empty(t, res.Unlocked)

	n, err := m.ScansCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	st, err := m.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.Scans)
	require.Equal(t, 2, st.Unsynced)
	require.Equal(t, 3, st.Pending)
	require.Equal(t, 10, st.Points)
	require.Equal(t, 1, st.Level)
}

func TestRecordScanNeedsLabel(t *testing.T) {
	m := newManager(t, Options{})
	_, err := m.RecordScan(context.Background(), ScanInput{DiseaseLabel: "  "})
	require.Error(t, err)

	n, _ := m.ScansCount(context.Background())
	require.Zero(t, n)
}

func TestDisabledMode(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	m := New(db.New(blocker, db.Options{}), Options{})
	err := m.Initialize(ctx)
	require.True(t, errors.Is(err, db.ErrStorageUnavailable), "got %v", err)
	require.Error(t, m.Disabled())

	st, err := m.Status(ctx)
	require.NoError(t, err)
	require.True(t, st.StorageDisabled)
	require.NotEmpty(t, st.DisabledReason)
	require.False(t, st.Usage.Known)

	n, err := m.ScansCount(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	queue, err := m.SyncQueue(ctx)
	require.NoError(t, err)
	require.Empty(t, queue)
	require.False(t, m.StorageInfo(ctx).Known)

	_, err = m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.True(t, errors.Is(err, ErrStorageDisabled))

	_, err = m.Evict(ctx, false)
	require.True(t, errors.Is(err, ErrStorageDisabled))

	_, err = m.SavePrediction(ctx, &models.Prediction{})
	require.True(t, errors.Is(err, ErrStorageDisabled))

	all, err := m.Achievements(ctx)
	require.NoError(t, err)
	require.Len(t, all, 11)
}

func TestDrainMarksScansSynced(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	m := newManager(t, Options{Transport: rec, DisableScanWake: true})

	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Common Rust"})
	require.NoError(t, err)

	sum, err := m.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Delivered)
	require.Zero(t, sum.Remaining)

	first := <-rec.got
	require.Equal(t, models.ActionScanCreate, first.Action)
	require.Equal(t, 1, first.Attempt)

	scan, err := m.Store().GetScan(ctx, res.Scan.ID)
	require.NoError(t, err)
	require.True(t, scan.Synced)
}

func TestEvict(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, Options{Capacity: capacity.New()})

	for i := range evict.MaxRetained + 5 {
		_, err := m.Store().InsertScan(ctx, &models.Scan{
			Timestamp:    day0.Add(time.Duration(i) * time.Minute),
			DiseaseLabel: "Leaf Spot",
		})
		require.NoError(t, err)
	}

	res, err := m.Evict(ctx, true)
	require.NoError(t, err)
	require.True(t, res.Skipped, "unknown usage must not evict")

	require.NoError(t, m.Scheduler().Tick(ctx, TaskEvict))
	n, err := m.ScansCount(ctx)
	require.NoError(t, err)
	require.Equal(t, evict.MaxRetained, n)

	oldest, err := m.Store().GetScan(ctx, 5)
	require.NoError(t, err)
	require.Nil(t, oldest)
}

func TestCapacityTaskEvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	full := capacity.New(capacity.SourceFunc(func(context.Context) (capacity.Usage, bool, error) {
		return capacity.NewUsage(90, 100), true, nil
	}))
	m := newManager(t, Options{Capacity: full})

	for range evict.MaxRetained + 1 {
		_, err := m.Store().InsertScan(ctx, &models.Scan{DiseaseLabel: "Mosaic"})
		require.NoError(t, err)
	}
	require.NoError(t, m.Scheduler().Tick(ctx, TaskCapacity))

	n, err := m.ScansCount(ctx)
	require.NoError(t, err)
	require.Equal(t, evict.MaxRetained, n)
}

func TestDrainTaskSkipsWhileOffline(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	m := newManager(t, Options{
		Transport: rec,
		Prober:    netstate.ProberFunc(func(context.Context) bool { return false }),
	})
	_, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Scab"})
	require.NoError(t, err)

	m.Connectivity().Observe(false)
	require.NoError(t, m.Scheduler().Tick(ctx, TaskDrain))
	require.Empty(t, rec.got)

	m.Connectivity().Observe(true)
	require.NoError(t, m.Scheduler().Tick(ctx, TaskDrain))
	require.Len(t, rec.got, 2)
}

func TestRunDrainsOnReconnect(t *testing.T) {
	rec := newRecorder()
	var online atomic.Bool
	m := newManager(t, Options{
		Transport:     rec,
		Prober:        netstate.ProberFunc(func(context.Context) bool { return online.Load() }),
		ProbeInterval: 10 * time.Millisecond,
		DrainInterval: time.Hour,
		EvictInterval: time.Hour,
	})

	_, err := m.RecordScan(context.Background(), ScanInput{DiseaseLabel: "Downy Mildew"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return m.Connectivity().Sampled() && m.Scheduler().Runs(TaskCapacity) > 0
	}, 5*time.Second, 10*time.Millisecond)
	require.Empty(t, rec.got)

	online.Store(true)
	select {
	case d := <-rec.got:
		require.Equal(t, models.ActionScanCreate, d.Action)
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect did not trigger a drain")
	}

	require.Eventually(t, func() bool {
		q, err := m.SyncQueue(context.Background())
		return err == nil && len(q) == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestDisableEvictionDropsTask(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, Options{DisableEviction: true})

	err := m.Scheduler().Tick(ctx, TaskEvict)
	require.ErrorIs(t, err, schedule.ErrUnknownTask)
	require.NoError(t, m.Scheduler().Tick(ctx, TaskCapacity))
}

func TestRecordScanDrainsInlineWhenOnline(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	m := newManager(t, Options{Transport: rec})

	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.NoError(t, err)
	require.NotNil(t, res.Drain)
	require.Equal(t, 2, res.Drain.Delivered)
	require.Zero(t, res.Drain.Remaining)
	require.Len(t, rec.got, 2)
	require.Equal(t, models.ActionScanCreate, (<-rec.got).Action)

	scan, err := m.Store().GetScan(ctx, res.Scan.ID)
	require.NoError(t, err)
	require.True(t, scan.Synced)
	require.Empty(t, m.kick)
}

func TestRecordScanStaysQueuedWhenOffline(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	var checks atomic.Int32
	m := newManager(t, Options{
		Transport: rec,
		Prober: netstate.ProberFunc(func(context.Context) bool {
			checks.Add(1)
			return false
		}),
	})

	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.NoError(t, err)
	require.Nil(t, res.Drain)
	require.Empty(t, rec.got)
	require.True(t, m.Connectivity().Sampled())

	// The first sample sticks; later scans do not check again
	_, err = m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.NoError(t, err)
	require.Equal(t, int32(1), checks.Load())

	queue, err := m.SyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 3)
}

func TestRecordScanWakesRunningLoop(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	m := newManager(t, Options{Transport: rec})
	m.running.Store(true)

	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.NoError(t, err)
	require.Nil(t, res.Drain)
	require.Len(t, m.kick, 1, "scan should hand the drain to the loop")
	require.Empty(t, rec.got)
}

func TestRecordScanWakeDisabled(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	m := newManager(t, Options{Transport: rec, DisableScanWake: true})

	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.NoError(t, err)
	require.Nil(t, res.Drain)
	require.Empty(t, m.kick)
	require.Empty(t, rec.got)
}

func TestRecordScanReturnsAchievementQueueError(t *testing.T) {
	boom := errors.New("disk said no")
	orig := enqueue
	enqueue = func(context.Context, *db.Store, string, any, int64) (*models.SyncItem, error) {
		return nil, boom
	}
	t.Cleanup(func() { enqueue = orig })

	ctx := context.Background()
	m := newManager(t, Options{DisableScanWake: true})
	res, err := m.RecordScan(ctx, ScanInput{DiseaseLabel: "Rust"})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "first-scan")
	require.NotNil(t, res)
	require.Len(t, res.Unlocked, 1)

	// The scan and its upload still committed
	queue, err := m.SyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	require.Equal(t, res.Scan.ID, queue[0].ScanID)
}

func TestSavePrediction(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, Options{})

	p := &models.Prediction{Date: day0, Data: json.RawMessage(`{"late-blight":0.8}`)}
	item, err := m.SavePrediction(ctx, p)
	require.NoError(t, err)
	require.Equal(t, models.ActionPredictionSave, item.Action)

	_, err = m.SavePrediction(ctx, &models.Prediction{Data: json.RawMessage(`{oops`)})
	require.Error(t, err)

	list, err := m.Predictions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, p.ID, list[0].ID)

	queue, err := m.SyncQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 1)
}

func TestEvictedScanStillUploads(t *testing.T) {
	ctx := context.Background()
	var delivered []agsync.Delivery
	tr := agsync.TransportFunc(func(_ context.Context, d agsync.Delivery) error {
		delivered = append(delivered, d)
		return nil
	})
	m := newManager(t, Options{Transport: tr, Capacity: capacity.New()})

	for i := range evict.MaxRetained + 1 {
		_, err := m.Store().InsertScanQueued(ctx, &models.Scan{
			Timestamp:    day0.Add(time.Duration(i) * time.Minute),
			DiseaseLabel: "Leaf Spot",
		})
		require.NoError(t, err)
	}
	res, err := m.Evict(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Evicted)
	gone, err := m.Store().GetScan(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, gone)

	// The evicted scan's upload carries its own copy and still goes out first
	sum, err := m.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, evict.MaxRetained+1, sum.Delivered)
	require.Zero(t, sum.Remaining)

	var first models.Scan
	require.NoError(t, json.Unmarshal(delivered[0].Payload, &first))
	require.Equal(t, int64(1), first.ID)
	require.Equal(t, "Leaf Spot", first.DiseaseLabel)
}
