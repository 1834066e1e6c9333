package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Collection names one of the store's record collections.
type Collection string

const (
	Scans       Collection = "scans"
	Diseases    Collection = "diseases"
	Predictions Collection = "predictions"
	SyncQueue   Collection = "sync_queue"
)

// Collections lists every collection in dependency-free order.
var Collections = []Collection{Scans, Diseases, Predictions, SyncQueue}

// table returns the backing table, rejecting names the store does not know.
// The result is safe to interpolate into SQL.
func (c Collection) table() (string, error) {
	switch c {
	case Scans, Diseases, Predictions, SyncQueue:
		return string(c), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, string(c))
}

// ParseCollection maps a user-supplied name to a Collection.
func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if _, err := c.table(); err != nil {
		return "", err
	}
	return c, nil
}

// Count returns the number of records in c.
func (s *Store) Count(ctx context.Context, c Collection) (int, error) {
	table, err := c.table()
	if err != nil {
		return 0, err
	}
	conn, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Delete removes the record with the given key from c. Deleting a key that
// does not exist is not an error. Disease keys are strings; the rest are
// integer ids.
func (s *Store) Delete(ctx context.Context, c Collection, key any) error {
	table, err := c.table()
	if err != nil {
		return err
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", key)
		return err
	})
}

// Counts returns the record count of every collection.
func (s *Store) Counts(ctx context.Context) (map[Collection]int, error) {
	counts := make(map[Collection]int, len(Collections))
	for _, c := range Collections {
		n, err := s.Count(ctx, c)
		if err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return counts, nil
}
