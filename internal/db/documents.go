package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// LoadDocument decodes the JSON document stored under key into v.
// It reports false, leaving v untouched, when no document exists.
func (s *Store) LoadDocument(ctx context.Context, key string, v any) (bool, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return false, err
	}
	var raw string
	err = conn.QueryRowContext(ctx, "SELECT value FROM documents WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveDocument replaces the document stored under key with v as JSON.
func (s *Store) SaveDocument(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, string(data), formatTime(time.Now()))
		return err
	})
}
