// Package monitor is the live status dashboard: connectivity, storage
// usage, the pending sync queue and recent scans.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/offline"
	agsync "github.com/marcus/agriscan/internal/sync"
	"github.com/marcus/agriscan/internal/version"
)

// recentLimit is how many scans the dashboard lists.
const recentLimit = 8

// Source is what the dashboard reads from. *offline.Manager implements it.
type Source interface {
	Status(ctx context.Context) (offline.Status, error)
	SyncQueue(ctx context.Context) ([]models.SyncItem, error)
	RecentScans(ctx context.Context, limit int) ([]models.Scan, error)
	Drain(ctx context.Context) (agsync.Summary, error)
}

// TickMsg triggers a periodic refresh
type TickMsg time.Time

// DataMsg carries a fresh snapshot
type DataMsg struct {
	Status offline.Status
	Queue  []models.SyncItem
	Scans  []models.Scan
	Err    error
}

// SyncDoneMsg reports a manual drain
type SyncDoneMsg struct {
	Summary agsync.Summary
	Err     error
}

// ClearStatusMsg clears the footer message
type ClearStatusMsg struct{}

// Model is the dashboard state.
type Model struct {
	source          Source
	RefreshInterval time.Duration
	Version         string

	Status      offline.Status
	Queue       []models.SyncItem
	Scans       []models.Scan
	Err         error
	LastRefresh time.Time
	Syncing     bool
	StatusMsg   string
	// UpdateNotice is set when a newer release exists.
	UpdateNotice string

	Width, Height int

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
}

// NewModel returns a dashboard over source refreshing every interval.
func NewModel(source Source, interval time.Duration, ver string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		source:          source,
		RefreshInterval: interval,
		Version:         ver,
		keys:            defaultKeys(),
		help:            help.New(),
		spinner:         sp,
		progress:        progress.New(progress.WithDefaultGradient()),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchData(), m.scheduleTick()}
	if m.Version != "" && !version.IsDevelopmentVersion(m.Version) {
		cmds = append(cmds, version.CheckAsync(m.Version))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchData()
		case key.Matches(msg, m.keys.Sync):
			if m.Syncing || m.Status.StorageDisabled {
				return m, nil
			}
			m.Syncing = true
			m.StatusMsg = "Syncing..."
			return m, tea.Batch(m.runSync(), m.spinner.Tick)
		}
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case DataMsg:
		m.LastRefresh = time.Now()
		m.Err = msg.Err
		if msg.Err == nil {
			m.Status = msg.Status
			m.Queue = msg.Queue
			m.Scans = msg.Scans
		}
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		if msg.Err != nil {
			m.StatusMsg = "Sync failed: " + msg.Err.Error()
		} else {
			m.StatusMsg = syncSummary(msg.Summary)
		}
		return m, tea.Batch(m.fetchData(), clearStatusAfter(3*time.Second))

	case version.UpdateAvailableMsg:
		m.UpdateNotice = "Update available: " + msg.LatestVersion
		if msg.UpdateCommand != "" {
			m.UpdateNotice += " (" + msg.UpdateCommand + ")"
		}
		return m, nil

	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case spinner.TickMsg:
		if !m.Syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that loads a snapshot and sends a DataMsg
func (m Model) fetchData() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx := context.Background()
		var msg DataMsg
		msg.Status, msg.Err = source.Status(ctx)
		if msg.Err != nil {
			return msg
		}
		if msg.Queue, msg.Err = source.SyncQueue(ctx); msg.Err != nil {
			return msg
		}
		msg.Scans, msg.Err = source.RecentScans(ctx, recentLimit)
		return msg
	}
}

func (m Model) runSync() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		sum, err := source.Drain(context.Background())
		return SyncDoneMsg{Summary: sum, Err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return ClearStatusMsg{} })
}
