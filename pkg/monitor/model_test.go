package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/agriscan/internal/capacity"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/offline"
	agsync "github.com/marcus/agriscan/internal/sync"
	"github.com/marcus/agriscan/internal/version"
)

type fakeSource struct {
	status  offline.Status
	queue   []models.SyncItem
	scans   []models.Scan
	err     error
	drained int
}

func (f *fakeSource) Status(context.Context) (offline.Status, error) { return f.status, f.err }
func (f *fakeSource) SyncQueue(context.Context) ([]models.SyncItem, error) {
	return f.queue, nil
}
func (f *fakeSource) RecentScans(context.Context, int) ([]models.Scan, error) {
	return f.scans, nil
}
func (f *fakeSource) Drain(context.Context) (agsync.Summary, error) {
	f.drained++
	return agsync.Summary{Delivered: len(f.queue)}, nil
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func TestFetchData(t *testing.T) {
	src := &fakeSource{
		status: offline.Status{Online: true, Scans: 2},
		queue:  []models.SyncItem{{ID: 1, Action: models.ActionScanCreate, Timestamp: time.Now()}},
		scans:  []models.Scan{{ID: 2, DiseaseLabel: "Rust", Timestamp: time.Now()}},
	}
	m := NewModel(src, time.Second, "v1")

	msg := m.fetchData()()
	data, ok := msg.(DataMsg)
	if !ok {
		t.Fatalf("fetchData returned %T, want DataMsg", msg)
	}
	next, _ := m.Update(data)
	m = next.(Model)

	if len(m.Queue) != 1 || len(m.Scans) != 1 || m.Status.Scans != 2 {
		t.Errorf("snapshot not applied: %+v", m)
	}
	if m.LastRefresh.IsZero() {
		t.Error("LastRefresh not set")
	}
}

func TestFetchErrorKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{status: offline.Status{Scans: 5}}
	m := NewModel(src, time.Second, "")
	next, _ := m.Update(m.fetchData()())
	m = next.(Model)

	src.err = errors.New("disk gone")
	next, _ = m.Update(m.fetchData()())
	m = next.(Model)

	if m.Err == nil {
		t.Fatal("error not recorded")
	}
	if m.Status.Scans != 5 {
		t.Errorf("Scans = %d, want previous 5", m.Status.Scans)
	}
}

func TestQuitKey(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("no command for q")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestSyncKey(t *testing.T) {
	src := &fakeSource{queue: []models.SyncItem{{ID: 1}, {ID: 2}}}
	m := NewModel(src, time.Second, "")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	m = next.(Model)
	if !m.Syncing || cmd == nil {
		t.Fatal("sync key did not start a sync")
	}

	// A second press while syncing is ignored
	_, again := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if again != nil {
		t.Error("second sync started while one was running")
	}

	done := m.runSync()()
	next, _ = m.Update(done)
	m = next.(Model)
	if m.Syncing {
		t.Error("still syncing after SyncDoneMsg")
	}
	if src.drained != 1 {
		t.Errorf("drained %d times, want 1", src.drained)
	}
	if !strings.Contains(m.StatusMsg, "2 delivered") {
		t.Errorf("StatusMsg = %q", m.StatusMsg)
	}

	next, _ = m.Update(ClearStatusMsg{})
	if next.(Model).StatusMsg != "" {
		t.Error("status message not cleared")
	}
}

func TestSyncKeyIgnoredWhenStorageDisabled(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second, "")
	m.Status.StorageDisabled = true
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if cmd != nil || next.(Model).Syncing {
		t.Error("sync started with storage disabled")
	}
}

func TestViewStates(t *testing.T) {
	tests := []struct {
		name   string
		status offline.Status
		queue  []models.SyncItem
		want   []string
	}{
		{
			name:   "offline with pending",
			status: offline.Status{Scans: 3, Unsynced: 3},
			queue:  []models.SyncItem{{ID: 7, Action: models.ActionScanCreate, Timestamp: time.Now()}},
			want:   []string{"OFFLINE", "1 pending", "Usage: unknown", "scan.create"},
		},
		{
			name:   "online known usage",
			status: offline.Status{Online: true, Usage: capacity.NewUsage(512, 1024)},
			want:   []string{"ONLINE", "50.0%", "512 B of 1.0 KiB", "Nothing waiting to sync"},
		},
		{
			name:   "disabled",
			status: offline.Status{StorageDisabled: true, DisabledReason: "read-only"},
			want:   []string{"STORAGE DISABLED", "read-only"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := sized(NewModel(&fakeSource{}, time.Second, ""))
			m.Status = tc.status
			m.Queue = tc.queue
			view := ansi.Strip(m.View())
			for _, want := range tc.want {
				if !strings.Contains(view, want) {
					t.Errorf("view missing %q:\n%s", want, view)
				}
			}
		})
	}
}

func TestViewBeforeSize(t *testing.T) {
	m := NewModel(&fakeSource{}, time.Second, "")
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q", got)
	}
}

func TestUpdateNotice(t *testing.T) {
	m := sized(NewModel(&fakeSource{}, time.Second, "v1.0.0"))
	next, _ := m.Update(version.UpdateAvailableMsg{LatestVersion: "v1.2.0", UpdateCommand: "go install x@v1.2.0"})
	view := ansi.Strip(next.(Model).View())
	if !strings.Contains(view, "Update available: v1.2.0") {
		t.Errorf("view missing update notice:\n%s", view)
	}
}

func TestSyncSummary(t *testing.T) {
	tests := []struct {
		sum  agsync.Summary
		want string
	}{
		{agsync.Summary{Delivered: 2}, "2 delivered, 0 remaining"},
		{agsync.Summary{Remaining: 3, Busy: true}, "0 delivered, 3 remaining (another process is syncing)"},
		{agsync.Summary{Delivered: 1, Remaining: 1, Halted: true, LastError: "boom"}, "1 delivered, 1 remaining (halted: boom)"},
	}
	for _, tt := range tests {
		if got := syncSummary(tt.sum); got != tt.want {
			t.Errorf("syncSummary(%+v) = %q, want %q", tt.sum, got, tt.want)
		}
	}
}
