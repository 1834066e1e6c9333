package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// baseVersion is the version the base schema creates before migrations run.
const baseVersion = 1

// getSchemaVersion returns the recorded schema version, 0 for a fresh database.
func getSchemaVersion(ctx context.Context, q querier) (int, error) {
	var version string
	err := q.QueryRowContext(ctx, "SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(version)
	if err != nil {
		return 0, fmt.Errorf("parse schema version %q: %w", version, err)
	}
	return v, nil
}

func setSchemaVersion(ctx context.Context, q querier, version int) error {
	_, err := q.ExecContext(ctx, `INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		strconv.Itoa(version))
	return err
}

// runMigrations brings the database up to SchemaVersion inside one
// transaction and returns how many steps ran. The base schema counts as one.
func runMigrations(ctx context.Context, conn *sql.DB) (int, error) {
	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_info: %w", err)
	}

	// Quick check without a transaction - the common case is nothing to do
	current, err := getSchemaVersion(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	if current >= SchemaVersion {
		return 0, nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Re-read inside the transaction in case another process got here first
	current, err = getSchemaVersion(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}

	ran := 0
	if current < baseVersion {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return 0, fmt.Errorf("create schema: %w", err)
		}
		current = baseVersion
		ran++
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return ran, fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		current = m.Version
		ran++
	}

	if err := setSchemaVersion(ctx, tx, current); err != nil {
		return ran, fmt.Errorf("set version %d: %w", current, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return ran, nil
}

// SchemaVersion returns the version recorded in the open database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	return getSchemaVersion(ctx, conn)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// columnExists checks whether a column exists on a table
func columnExists(ctx context.Context, q querier, table, column string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}
