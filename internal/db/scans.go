package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/agriscan/internal/models"
)

const scanColumns = "id, timestamp, disease_label, image_ref, synced, crop, confidence, severity"

// ScanKey is the part of a scan the eviction pass needs.
type ScanKey struct {
	ID        int64
	Timestamp time.Time
}

// InsertScan stores a new scan and sets its ID. A zero Timestamp is stamped
// with the current time. New scans always start unsynced.
func (s *Store) InsertScan(ctx context.Context, scan *models.Scan) (int64, error) {
	prepareScan(scan)
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return insertScan(ctx, tx, scan)
	})
	if err != nil {
		return 0, err
	}
	return scan.ID, nil
}

// InsertScanQueued stores scan and its scan.create sync item in one
// transaction, so a stored scan is never left without a pending upload.
// The item's payload is the scan's JSON encoding.
func (s *Store) InsertScanQueued(ctx context.Context, scan *models.Scan) (*models.SyncItem, error) {
	prepareScan(scan)
	item := &models.SyncItem{Action: models.ActionScanCreate}
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if err := insertScan(ctx, tx, scan); err != nil {
			return err
		}
		payload, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("encode scan payload: %w", err)
		}
		item.Payload = payload
		item.ScanID = scan.ID
		if err := prepareSyncItem(item); err != nil {
			return err
		}
		return insertSyncItem(ctx, tx, item)
	})
	if err != nil {
		scan.ID = 0
		return nil, err
	}
	return item, nil
}

func prepareScan(scan *models.Scan) {
	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now()
	}
	scan.Synced = false
}

func insertScan(ctx context.Context, tx *sql.Tx, scan *models.Scan) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans (timestamp, disease_label, image_ref, synced, crop, confidence, severity)
		VALUES (?, ?, ?, 0, ?, ?, ?)
	`, formatTime(scan.Timestamp), scan.DiseaseLabel, scan.ImageRef,
		scan.Crop, scan.Confidence, string(scan.Severity))
	if err != nil {
		return err
	}
	scan.ID, err = res.LastInsertId()
	return err
}

// GetScan returns the scan with the given id, or nil if there is none.
func (s *Store) GetScan(ctx context.Context, id int64) (*models.Scan, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, "SELECT "+scanColumns+" FROM scans WHERE id = ?", id)
	scan, err := scanScan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scan %d: %w", id, err)
	}
	return scan, nil
}

// ListScans returns every scan in id order.
func (s *Store) ListScans(ctx context.Context) ([]models.Scan, error) {
	return s.queryScans(ctx, "SELECT "+scanColumns+" FROM scans ORDER BY id")
}

// ListScansByTimestamp returns every scan oldest first, ties by id.
func (s *Store) ListScansByTimestamp(ctx context.Context) ([]models.Scan, error) {
	return s.queryScans(ctx, "SELECT "+scanColumns+" FROM scans ORDER BY timestamp, id")
}

// RecentScans returns up to limit scans, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]models.Scan, error) {
	return s.queryScans(ctx, "SELECT "+scanColumns+" FROM scans ORDER BY timestamp DESC, id DESC LIMIT ?", limit)
}

// ScansSince returns up to limit scans taken at or after since, newest first.
func (s *Store) ScansSince(ctx context.Context, since time.Time, limit int) ([]models.Scan, error) {
	return s.queryScans(ctx, "SELECT "+scanColumns+" FROM scans WHERE timestamp >= ? ORDER BY timestamp DESC, id DESC LIMIT ?",
		formatTime(since), limit)
}

// ListScanKeys returns the id and timestamp of every scan.
func (s *Store) ListScanKeys(ctx context.Context) ([]ScanKey, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, "SELECT id, timestamp FROM scans ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list scan keys: %w", err)
	}
	defer rows.Close()

	var keys []ScanKey
	for rows.Next() {
		var k ScanKey
		var ts string
		if err := rows.Scan(&k.ID, &ts); err != nil {
			return nil, err
		}
		if k.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteScans removes the given scans in one transaction and returns how
// many rows went away. Ids that no longer exist are skipped.
func (s *Store) DeleteScans(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "DELETE FROM scans WHERE id = ?")
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return fmt.Errorf("delete scan %d: %w", id, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

// MarkScanSynced flags a scan as delivered. The flag is never cleared.
func (s *Store) MarkScanSynced(ctx context.Context, id int64) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return markSynced(ctx, tx, id)
	})
}

// CountUnsynced returns how many scans have not been delivered yet.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM scans WHERE synced = 0").Scan(&n); err != nil {
		return 0, fmt.Errorf("count unsynced: %w", err)
	}
	return n, nil
}

func markSynced(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, "UPDATE scans SET synced = 1 WHERE id = ? AND synced = 0", id)
	return err
}

func (s *Store) queryScans(ctx context.Context, query string, args ...any) ([]models.Scan, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []models.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, *scan)
	}
	return scans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(r rowScanner) (*models.Scan, error) {
	var scan models.Scan
	var ts, severity string
	var synced int
	if err := r.Scan(&scan.ID, &ts, &scan.DiseaseLabel, &scan.ImageRef, &synced,
		&scan.Crop, &scan.Confidence, &severity); err != nil {
		return nil, err
	}
	t, err := parseTime(ts)
	if err != nil {
		return nil, err
	}
	scan.Timestamp = t
	scan.Synced = synced != 0
	scan.Severity = models.Severity(strings.ToLower(severity))
	return &scan, nil
}
