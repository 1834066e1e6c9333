package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcus/agriscan/internal/models"
)

const syncItemColumns = "id, action, payload, timestamp, retries, COALESCE(scan_id, 0), idempotency_key"

// EnqueueSync appends a pending action and sets its ID. Timestamp defaults
// to now and IdempotencyKey to a fresh UUID; Retries always starts at 0.
func (s *Store) EnqueueSync(ctx context.Context, item *models.SyncItem) (int64, error) {
	if err := prepareSyncItem(item); err != nil {
		return 0, err
	}
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return insertSyncItem(ctx, tx, item)
	})
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

func prepareSyncItem(item *models.SyncItem) error {
	if item.Action == "" {
		return fmt.Errorf("enqueue: empty action")
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	if item.IdempotencyKey == "" {
		item.IdempotencyKey = uuid.NewString()
	}
	if len(item.Payload) == 0 {
		item.Payload = json.RawMessage("{}")
	}
	item.Retries = 0
	return nil
}

func insertSyncItem(ctx context.Context, tx *sql.Tx, item *models.SyncItem) error {
	var scanID any
	if item.ScanID != 0 {
		scanID = item.ScanID
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue (action, payload, timestamp, retries, scan_id, idempotency_key)
		VALUES (?, ?, ?, 0, ?, ?)
	`, item.Action, string(item.Payload), formatTime(item.Timestamp), scanID, item.IdempotencyKey)
	if err != nil {
		return err
	}
	item.ID, err = res.LastInsertId()
	return err
}

// ListSyncQueue returns pending items oldest first, ties by id.
func (s *Store) ListSyncQueue(ctx context.Context) ([]models.SyncItem, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, "SELECT "+syncItemColumns+" FROM sync_queue ORDER BY timestamp, id")
	if err != nil {
		return nil, fmt.Errorf("list sync queue: %w", err)
	}
	defer rows.Close()

	var items []models.SyncItem
	for rows.Next() {
		item, err := scanSyncItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetSyncItem returns the pending item with the given id, or nil once it
// has been delivered.
func (s *Store) GetSyncItem(ctx context.Context, id int64) (*models.SyncItem, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	item, err := scanSyncItem(conn.QueryRowContext(ctx, "SELECT "+syncItemColumns+" FROM sync_queue WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync item %d: %w", id, err)
	}
	return item, nil
}

// CompleteSyncItem records a confirmed delivery: the item is deleted and,
// when it refers to a scan, that scan is marked synced, in one transaction.
func (s *Store) CompleteSyncItem(ctx context.Context, item models.SyncItem) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", item.ID); err != nil {
			return err
		}
		if item.ScanID != 0 {
			return markSynced(ctx, tx, item.ScanID)
		}
		return nil
	})
}

// IncrementRetries bumps the retry count of a pending item after a failed
// delivery attempt. It returns the new count, or 0 if the item is gone.
func (s *Store) IncrementRetries(ctx context.Context, id int64) (int, error) {
	var retries int
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE sync_queue SET retries = retries + 1 WHERE id = ?", id); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, "SELECT retries FROM sync_queue WHERE id = ?", id).Scan(&retries)
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return retries, nil
}

func scanSyncItem(r rowScanner) (*models.SyncItem, error) {
	var item models.SyncItem
	var payload, ts string
	if err := r.Scan(&item.ID, &item.Action, &payload, &ts, &item.Retries, &item.ScanID, &item.IdempotencyKey); err != nil {
		return nil, err
	}
	t, err := parseTime(ts)
	if err != nil {
		return nil, err
	}
	item.Timestamp = t
	item.Payload = json.RawMessage(payload)
	return &item, nil
}
