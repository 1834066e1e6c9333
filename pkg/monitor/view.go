package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/agriscan/internal/output"
	agsync "github.com/marcus/agriscan/internal/sync"
)

// renderView renders the complete dashboard
func (m Model) renderView() string {
	if m.Width == 0 {
		return "Loading..."
	}

	sections := []string{m.renderHeader()}
	if m.Err != nil {
		sections = append(sections, errorStyle.Render("Error: "+m.Err.Error()))
	}
	sections = append(sections,
		m.renderStorage(),
		m.renderQueue(),
		m.renderScans(),
		m.renderFooter(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("agriscan")
	if m.Version != "" {
		title += subtleStyle.Render(" " + m.Version)
	}

	badges := []string{}
	switch {
	case m.Status.StorageDisabled:
		badges = append(badges, disabledBadge.Render("STORAGE DISABLED"))
	case m.Status.Online:
		badges = append(badges, onlineBadge.Render("ONLINE"))
	default:
		badges = append(badges, offlineBadge.Render("OFFLINE"))
	}
	if n := len(m.Queue); n > 0 {
		badges = append(badges, pendingBadge.Render(fmt.Sprintf("%d pending", n)))
	}
	return title + "  " + strings.Join(badges, " ")
}

func (m Model) renderStorage() string {
	var body string
	st := m.Status
	switch {
	case st.StorageDisabled:
		body = errorStyle.Render("Local storage unavailable: " + st.DisabledReason)
	case !st.Usage.Known:
		body = fmt.Sprintf("Usage: unknown\nScans: %d stored, %d unsynced", st.Scans, st.Unsynced)
	default:
		bar := m.progress.ViewAs(st.Usage.PercentageUsed / 100)
		body = fmt.Sprintf("%s %.1f%%\n%s of %s\nScans: %d stored, %d unsynced",
			bar, st.Usage.PercentageUsed,
			output.FormatBytes(st.Usage.UsedBytes), output.FormatBytes(st.Usage.QuotaBytes),
			st.Scans, st.Unsynced)
	}
	body += fmt.Sprintf("\nLevel %d · %d points", max(st.Level, 1), st.Points)
	return m.panel("Storage", body)
}

func (m Model) renderQueue() string {
	lines := []string{}
	if m.Syncing {
		lines = append(lines, m.spinner.View()+" syncing")
	}
	if len(m.Queue) == 0 {
		lines = append(lines, subtleStyle.Render("Nothing waiting to sync"))
	}
	for i := range m.Queue {
		if i == recentLimit {
			lines = append(lines, subtleStyle.Render(fmt.Sprintf("… %d more", len(m.Queue)-recentLimit)))
			break
		}
		lines = append(lines, output.FormatSyncItem(&m.Queue[i]))
	}
	if d := m.Status.LastDrain; d != nil {
		lines = append(lines, subtleStyle.Render(fmt.Sprintf("Last sync %s: %s", output.FormatTimeAgo(d.At), syncSummary(d.Summary))))
	}
	return m.panel("Sync queue", strings.Join(lines, "\n"))
}

func (m Model) renderScans() string {
	if len(m.Scans) == 0 {
		return m.panel("Recent scans", subtleStyle.Render("No scans yet"))
	}
	width := max(20, m.Width-6)
	lines := make([]string, len(m.Scans))
	for i := range m.Scans {
		lines[i] = output.FormatScanShort(&m.Scans[i], width)
	}
	return m.panel("Recent scans", strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	left := m.help.View(m.keys)
	if m.StatusMsg != "" {
		left = m.StatusMsg + "  " + left
	}
	if !m.LastRefresh.IsZero() {
		left += subtleStyle.Render("  updated " + m.LastRefresh.Format("15:04:05"))
	}
	if m.UpdateNotice != "" {
		left += "\n" + subtleStyle.Render(m.UpdateNotice)
	}
	return left
}

func (m Model) panel(title, body string) string {
	style := panelStyle
	if m.Width > 4 {
		style = style.Width(m.Width - 2)
	}
	return style.Render(panelTitleStyle.Render(title) + "\n" + body)
}

// syncSummary describes a drain outcome in one line.
func syncSummary(s agsync.Summary) string {
	msg := fmt.Sprintf("%d delivered, %d remaining", s.Delivered, s.Remaining)
	if s.Busy {
		msg += " (another process is syncing)"
	}
	if s.Halted {
		msg += " (halted: " + s.LastError + ")"
	}
	return msg
}
