package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcus/agriscan/internal/models"
)

func TestEnqueueSync(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		a := &models.SyncItem{Action: models.ActionScanCreate, Payload: json.RawMessage(`{"n":1}`), Retries: 7}
		b := &models.SyncItem{Action: models.ActionPredictionSave}
		_, err := s.EnqueueSync(ctx, a)
		require.NoError(t, err)
		_, err = s.EnqueueSync(ctx, b)
		require.NoError(t, err)

		require.NotEmpty(t, a.IdempotencyKey)
		require.NotEqual(t, a.IdempotencyKey, b.IdempotencyKey)

		got, err := s.GetSyncItem(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Zero(t, got.Retries, "retries start at zero")
		require.JSONEq(t, `{"n":1}`, string(got.Payload))
		require.Equal(t, a.IdempotencyKey, got.IdempotencyKey)
		require.Zero(t, got.ScanID)
	})
}

func TestEnqueueSync_EmptyAction(t *testing.T) {
	s := openTestStore(t, Options{InMemory: true})
	_, err := s.EnqueueSync(context.Background(), &models.SyncItem{})
	require.Error(t, err)
}

func TestListSyncQueue_OldestFirst(t *testing.T) {
	s := openTestStore(t, Options{InMemory: true})
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, it := range []struct {
		action string
		at     time.Duration
	}{
		{"c", 2 * time.Minute},
		{"a", 0},
		{"b", time.Minute},
		{"b2", time.Minute},
	} {
		_, err := s.EnqueueSync(ctx, &models.SyncItem{Action: it.action, Timestamp: base.Add(it.at)})
		require.NoError(t, err)
	}

	items, err := s.ListSyncQueue(ctx)
	require.NoError(t, err)
	var order []string
	for _, it := range items {
		order = append(order, it.Action)
	}
	require.Equal(t, []string{"a", "b", "b2", "c"}, order)
}

func TestCompleteSyncItem(t *testing.T) {
	s := openTestStore(t, Options{InMemory: true})
	ctx := context.Background()

	scan := &models.Scan{DiseaseLabel: "Canker"}
	_, err := s.InsertScan(ctx, scan)
	require.NoError(t, err)
	item := &models.SyncItem{Action: models.ActionScanCreate, ScanID: scan.ID}
	_, err = s.EnqueueSync(ctx, item)
	require.NoError(t, err)

	require.NoError(t, s.CompleteSyncItem(ctx, *item))

	gone, err := s.GetSyncItem(ctx, item.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	got, err := s.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	require.True(t, got.Synced)
}

func TestIncrementRetries(t *testing.T) {
	s := openTestStore(t, Options{InMemory: true})
	ctx := context.Background()

	item := &models.SyncItem{Action: "x"}
	_, err := s.EnqueueSync(ctx, item)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		n, err := s.IncrementRetries(ctx, item.ID)
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	n, err := s.IncrementRetries(ctx, 9999)
	require.NoError(t, err)
	require.Zero(t, n)
}
