package evict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcus/agriscan/internal/capacity"
	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/models"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.Open(context.Background(), t.TempDir(), db.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// insertAt adds one scan per timestamp, in slice order.
func insertAt(t *testing.T, s *db.Store, times []time.Time) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(times))
	for _, ts := range times {
		id, err := s.InsertScan(context.Background(), &models.Scan{DiseaseLabel: "Rust", Timestamp: ts})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func seconds(from, to int) []time.Time {
	var out []time.Time
	for i := from; i <= to; i++ {
		out = append(out, time.Unix(int64(i), 0))
	}
	return out
}

func TestRun_1200Scans(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	insertAt(t, s, seconds(1, 1200))

	res, err := New(s, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1200, res.Considered)
	require.Equal(t, 200, res.Evicted)

	n, err := s.Count(ctx, db.Scans)
	require.NoError(t, err)
	require.Equal(t, MaxRetained, n)

	first, err := s.GetScan(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, first, "oldest scan should be evicted")

	last, err := s.GetScan(ctx, 1200)
	require.NoError(t, err)
	require.NotNil(t, last, "newest scan should be kept")
}

func TestRun_KeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ids := insertAt(t, s, seconds(1, 1005))

	_, err := New(s, nil).Run(ctx)
	require.NoError(t, err)

	keys, err := s.ListScanKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, MaxRetained)
	require.Equal(t, ids[5], keys[0].ID, "records 6..1005 remain")
	require.Equal(t, ids[1004], keys[len(keys)-1].ID)
}

func TestRun_UsesTimestampNotID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// Oldest timestamps get the highest ids
	times := seconds(1, 1003)
	for i, j := 0, len(times)-1; i < j; i, j = i+1, j-1 {
		times[i], times[j] = times[j], times[i]
	}
	ids := insertAt(t, s, times)

	_, err := New(s, nil).Run(ctx)
	require.NoError(t, err)

	for _, id := range ids[len(ids)-3:] {
		got, err := s.GetScan(ctx, id)
		require.NoError(t, err)
		require.Nil(t, got, "scan %d has one of the oldest timestamps", id)
	}
	got, err := s.GetScan(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestRun_TiesEvictOldestIDFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	same := time.Unix(500, 0)
	times := make([]time.Time, MaxRetained+2)
	for i := range times {
		times[i] = same
	}
	ids := insertAt(t, s, times)

	res, err := New(s, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Evicted)

	for i, id := range ids[:3] {
		got, err := s.GetScan(ctx, id)
		require.NoError(t, err)
		if i < 2 {
			require.Nil(t, got, "tie: id %d should go first", id)
		} else {
			require.NotNil(t, got)
		}
	}
}

func TestRun_NoopAtOrBelowBound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	insertAt(t, s, seconds(1, MaxRetained))

	p := New(s, nil)
	for range 2 {
		res, err := p.Run(ctx)
		require.NoError(t, err)
		require.Zero(t, res.Evicted)
	}
	n, err := s.Count(ctx, db.Scans)
	require.NoError(t, err)
	require.Equal(t, MaxRetained, n)
}

func TestRun_BoundHoldsAcrossRounds(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	p := New(s, nil)

	next := 1
	for _, batch := range []int{400, 700, 50, 900} {
		insertAt(t, s, seconds(next, next+batch-1))
		next += batch
		_, err := p.Run(ctx)
		require.NoError(t, err)

		n, err := s.Count(ctx, db.Scans)
		require.NoError(t, err)
		require.LessOrEqual(t, n, MaxRetained)
	}
}

func TestSelectEvictions_IgnoresLaterInserts(t *testing.T) {
	keys := []db.ScanKey{
		{ID: 1, Timestamp: time.Unix(1, 0)},
		{ID: 2, Timestamp: time.Unix(2, 0)},
		{ID: 3, Timestamp: time.Unix(3, 0)},
	}
	got := selectEvictions(keys, 2)
	require.Equal(t, []int64{1}, got)
	require.Equal(t, int64(1), keys[0].ID, "input must not be reordered")
	require.Nil(t, selectEvictions(keys, 3))
}

func TestCheckCapacity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	insertAt(t, s, seconds(1, MaxRetained+10))

	fixed := func(u capacity.Usage) *capacity.Monitor {
		return capacity.New(capacity.SourceFunc(func(context.Context) (capacity.Usage, bool, error) {
			return u, u.Known, nil
		}))
	}

	res, err := New(s, fixed(capacity.Unknown)).CheckCapacity(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped, "unknown usage must not evict")

	res, err = New(s, fixed(capacity.NewUsage(50, 100))).CheckCapacity(ctx)
	require.NoError(t, err)
	require.True(t, res.Skipped)

	n, _ := s.Count(ctx, db.Scans)
	require.Equal(t, MaxRetained+10, n)

	res, err = New(s, fixed(capacity.NewUsage(90, 100))).CheckCapacity(ctx)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	require.Equal(t, 10, res.Evicted)
	require.NotNil(t, res.Usage)
}
