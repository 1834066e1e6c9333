package capacity

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/marcus/agriscan/internal/db"
)

func TestNewUsage(t *testing.T) {
	u := NewUsage(850, 1000)
	if !u.Known || u.PercentageUsed != 85 {
		t.Errorf("got %+v, want known 85%%", u)
	}
	if got := NewUsage(10, 0); got != Unknown {
		t.Errorf("zero quota: got %+v, want Unknown", got)
	}
}

func TestHighUtilization(t *testing.T) {
	tests := []struct {
		name string
		u    Usage
		want bool
	}{
		{"unknown", Unknown, false},
		{"below", NewUsage(50, 100), false},
		{"at threshold", NewUsage(80, 100), false},
		{"above", NewUsage(81, 100), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HighUtilization(tt.u); got != tt.want {
				t.Errorf("HighUtilization(%+v) = %v, want %v", tt.u, got, tt.want)
			}
		})
	}
}

func TestMonitor_FirstKnownWins(t *testing.T) {
	calls := 0
	failing := SourceFunc(func(context.Context) (Usage, bool, error) {
		calls++
		return Unknown, false, errors.New("statfs: permission denied")
	})
	blind := SourceFunc(func(context.Context) (Usage, bool, error) {
		calls++
		return Unknown, false, nil
	})
	known := SourceFunc(func(context.Context) (Usage, bool, error) {
		calls++
		return NewUsage(1, 4), true, nil
	})
	never := SourceFunc(func(context.Context) (Usage, bool, error) {
		t.Error("source after a known answer was consulted")
		return Unknown, false, nil
	})

	u := New(failing, blind, known, never).Usage(context.Background())
	if u.PercentageUsed != 25 {
		t.Errorf("got %+v, want 25%%", u)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestMonitor_NoSourcesIsUnknown(t *testing.T) {
	if u := New().Usage(context.Background()); u.Known {
		t.Errorf("got %+v, want unknown", u)
	}
}

func TestStoreSource(t *testing.T) {
	ctx := context.Background()

	unlimited, err := db.Open(ctx, t.TempDir(), db.Options{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer unlimited.Close()
	if _, ok, err := (StoreSource{Store: unlimited}).Usage(ctx); ok || err != nil {
		t.Errorf("no quota: ok=%v err=%v, want unknown", ok, err)
	}

	capped, err := db.Open(ctx, t.TempDir(), db.Options{InMemory: true, QuotaBytes: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	defer capped.Close()
	u, ok, err := (StoreSource{Store: capped}).Usage(ctx)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if u.QuotaBytes != 1<<20 || u.UsedBytes <= 0 || u.PercentageUsed <= 0 {
		t.Errorf("got %+v", u)
	}
}

func TestFilesystemSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("statfs source is unix only")
	}
	ctx := context.Background()
	store, err := db.Open(ctx, t.TempDir(), db.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	u := ForStore(store).Usage(ctx)
	if !u.Known {
		t.Fatal("filesystem usage unknown")
	}
	if u.QuotaBytes < u.UsedBytes || u.PercentageUsed < 0 || u.PercentageUsed > 100 {
		t.Errorf("implausible usage %+v", u)
	}
}
