package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marcus/agriscan/internal/models"
)

// eachDriver runs fn against a fresh on-disk store for every driver.
func eachDriver(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Helper()
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			s := openTestStore(t, Options{Driver: driver})
			fn(t, s)
		})
	}
}

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), opts)
	if err != nil {
		if opts.Driver == DriverCGO && strings.Contains(err.Error(), "cgo") {
			t.Skip("cgo sqlite driver not available in this build")
		}
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitialize(t *testing.T) {
	eachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		if _, err := os.Stat(filepath.Join(s.BaseDir(), ".agriscan", "agriscan.db")); err != nil {
			t.Fatalf("database file not created: %v", err)
		}
		v, err := s.SchemaVersion(ctx)
		if err != nil {
			t.Fatalf("SchemaVersion: %v", err)
		}
		if v != SchemaVersion {
			t.Errorf("schema version = %d, want %d", v, SchemaVersion)
		}
		for _, c := range Collections {
			n, err := s.Count(ctx, c)
			if err != nil {
				t.Fatalf("Count(%s): %v", c, err)
			}
			if n != 0 {
				t.Errorf("Count(%s) = %d, want 0", c, n)
			}
		}
	})
}

func TestInitialize_ConcurrentCallersShareHandle(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir(), Options{})
	defer s.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Initialize(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Initialize: %v", err)
		}
	}

	first, _ := s.db(ctx)
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	second, _ := s.db(ctx)
	if first != second {
		t.Error("Initialize opened a second handle")
	}
}

func TestInitialize_StorageUnavailable(t *testing.T) {
	// A regular file where the data dir should go cannot be mkdir'd
	base := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(base, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(base, Options{})
	err := s.Initialize(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}

	// Every other operation reports the same class
	if _, err := s.Count(context.Background(), Scans); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Count err = %v, want ErrStorageUnavailable", err)
	}
}

func TestInitialize_UnknownDriver(t *testing.T) {
	s := New(t.TempDir(), Options{Driver: "postgres"})
	if err := s.Initialize(context.Background()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestReopenAfterClose(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, Options{})

	scan := &models.Scan{DiseaseLabel: "Leaf Rust"}
	if _, err := s.InsertScan(ctx, scan); err != nil {
		t.Fatalf("InsertScan: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := s.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("GetScan after Close: %v", err)
	}
	if got == nil || got.DiseaseLabel != "Leaf Rust" {
		t.Errorf("got %+v, want the scan back after reopen", got)
	}
}

func TestMigrateFromBaseSchema(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, dbFile)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatal(err)
	}

	// Build a version 1 database by hand
	raw, err := sql.Open(DriverModernc, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		schema,
		`CREATE TABLE schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`INSERT INTO schema_info (key, value) VALUES ('version', '1')`,
		`INSERT INTO scans (timestamp, disease_label) VALUES ('2024-03-01 10:00:00', 'Early Blight')`,
	}
	for _, stmt := range stmts {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	raw.Close()

	s, err := Open(ctx, dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	v, _ := s.SchemaVersion(ctx)
	if v != SchemaVersion {
		t.Errorf("version = %d, want %d", v, SchemaVersion)
	}
	conn, _ := s.db(ctx)
	for _, col := range []string{"crop", "confidence", "severity"} {
		ok, err := columnExists(ctx, conn, "scans", col)
		if err != nil || !ok {
			t.Errorf("scans.%s missing after migration (err %v)", col, err)
		}
	}

	scan, err := s.GetScan(ctx, 1)
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if scan == nil || scan.DiseaseLabel != "Early Blight" {
		t.Fatalf("pre-migration scan lost: %+v", scan)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !scan.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", scan.Timestamp, want)
	}
}

func TestUnknownCollection(t *testing.T) {
	s := openTestStore(t, Options{InMemory: true})
	ctx := context.Background()

	if _, err := s.Count(ctx, Collection("users")); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("Count err = %v, want ErrUnknownCollection", err)
	}
	if err := s.Delete(ctx, Collection("users; DROP TABLE scans"), 1); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("Delete err = %v, want ErrUnknownCollection", err)
	}
	if _, err := ParseCollection("sync_queue"); err != nil {
		t.Errorf("ParseCollection(sync_queue): %v", err)
	}
}

func TestQuotaExceeded(t *testing.T) {
	for _, driver := range Drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, Options{Driver: driver, InMemory: true, QuotaBytes: 160 << 10})

			big := strings.Repeat("x", 8<<10)
			var err error
			inserted := 0
			for range 500 {
				if _, err = s.InsertScan(ctx, &models.Scan{DiseaseLabel: "Blast", ImageRef: big}); err != nil {
					break
				}
				inserted++
			}
			if err == nil {
				t.Fatal("quota never hit")
			}
			if !errors.Is(err, ErrTransactionAborted) {
				t.Errorf("err = %v, want ErrTransactionAborted", err)
			}
			if !errors.Is(err, ErrQuotaExceeded) {
				t.Errorf("err = %v, want ErrQuotaExceeded", err)
			}

			// The failed insert left nothing behind
			n, err := s.Count(ctx, Scans)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != inserted {
				t.Errorf("count = %d, want %d", n, inserted)
			}

			u, err := s.Usage(ctx)
			if err != nil {
				t.Fatalf("Usage: %v", err)
			}
			if u.QuotaBytes == 0 || u.UsedBytes > u.QuotaBytes {
				t.Errorf("usage = %+v, want used within a set quota", u)
			}
		})
	}
}

func TestDocuments(t *testing.T) {
	s := openTestStore(t, Options{InMemory: true})
	ctx := context.Background()

	type doc struct {
		Points int      `json:"points"`
		Seen   []string `json:"seen"`
	}

	var got doc
	ok, err := s.LoadDocument(ctx, "progress", &got)
	if err != nil || ok {
		t.Fatalf("LoadDocument on empty store = %v, %v; want false, nil", ok, err)
	}

	if err := s.SaveDocument(ctx, "progress", doc{Points: 10, Seen: []string{"a"}}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if err := s.SaveDocument(ctx, "progress", doc{Points: 25, Seen: []string{"a", "b"}}); err != nil {
		t.Fatalf("SaveDocument overwrite: %v", err)
	}

	ok, err = s.LoadDocument(ctx, "progress", &got)
	if err != nil || !ok {
		t.Fatalf("LoadDocument = %v, %v", ok, err)
	}
	if got.Points != 25 || len(got.Seen) != 2 {
		t.Errorf("got %+v, want the second save", got)
	}
}
