package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	dataDir = ".agriscan"
	dbFile  = ".agriscan/agriscan.db"
)

// Options controls how the store opens its database.
type Options struct {
	// Driver selects the SQLite driver: DriverModernc (default) or DriverCGO.
	Driver string
	// QuotaBytes caps the database size. Zero means no cap beyond the disk.
	QuotaBytes int64
	// InMemory keeps everything in a private in-memory database (tests).
	InMemory bool
}

// Store is the durable local record store. It is safe for concurrent use.
// The database is opened lazily by the first operation or explicitly by
// Initialize, and can be reopened after Close.
type Store struct {
	baseDir string
	opts    Options

	mu   sync.Mutex // guards conn
	conn *sql.DB

	// writeMu serializes writers inside this process; the file lock
	// covers other processes sharing the same data dir.
	writeMu sync.Mutex
}

// New returns a store rooted at baseDir. Nothing is touched on disk until
// Initialize or the first operation.
func New(baseDir string, opts Options) *Store {
	if opts.Driver == "" {
		opts.Driver = DriverModernc
	}
	return &Store{baseDir: baseDir, opts: opts}
}

// Open is New followed by Initialize.
func Open(ctx context.Context, baseDir string, opts Options) (*Store, error) {
	s := New(baseDir, opts)
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file path, or ":memory:" for in-memory stores.
func (s *Store) Path() string {
	if s.opts.InMemory {
		return ":memory:"
	}
	return filepath.Join(s.baseDir, dbFile)
}

// BaseDir returns the base directory for the database
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Initialize opens (creating if absent) the database and runs pending
// migrations. Calling it again, or concurrently, returns the same handle.
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.db(ctx)
	return err
}

// Close closes the database. A later operation reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// db returns the open handle, opening it on first use.
func (s *Store) db(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.conn = conn
	return conn, nil
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	dsn := ":memory:"
	if !s.opts.InMemory {
		dbPath := filepath.Join(s.baseDir, dbFile)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = dbPath
	}

	driverName, err := sqlDriverName(s.opts.Driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: pragmas such as max_page_count are per connection,
	// and an in-memory database only exists on the connection that made it.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !s.opts.InMemory {
		// WAL keeps readers off the writer's back
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set synchronous: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := applyQuota(ctx, conn, s.opts.QuotaBytes); err != nil {
		conn.Close()
		return nil, err
	}

	n, err := runMigrations(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if n > 0 {
		slog.Debug("db: migrations applied", "count", n, "path", s.Path())
	}

	return conn, nil
}

// applyQuota caps the database at quotaBytes by limiting its page count.
func applyQuota(ctx context.Context, conn *sql.DB, quotaBytes int64) error {
	if quotaBytes <= 0 {
		return nil
	}
	var pageSize int64
	if err := conn.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return fmt.Errorf("read page size: %w", err)
	}
	pages := quotaBytes / pageSize
	if pages < 1 {
		pages = 1
	}
	// SQLite silently refuses to go below the current page count
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA max_page_count=%d", pages)); err != nil {
		return fmt.Errorf("set max page count: %w", err)
	}
	return nil
}

// withWriteTx runs fn inside a transaction while holding the write lock.
// Any failure to run or commit surfaces as ErrTransactionAborted.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := s.db(ctx)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.opts.InMemory {
		locker := newWriteLocker(s.baseDir)
		if err := locker.acquire(defaultTimeout); err != nil {
			return fmt.Errorf("%w: %v", ErrTransactionAborted, err)
		}
		defer locker.release()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return abort(err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return abort(err)
	}
	if err := tx.Commit(); err != nil {
		return abort(err)
	}
	return nil
}
