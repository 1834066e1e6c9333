// Package output provides styled terminal output helpers (success, error,
// warning, scan and queue formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/agriscan/internal/models"
)

var (
	// Styles
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	syncedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	severityStyle = map[models.Severity]lipgloss.Style{
		models.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("202")),
		models.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound           = "not_found"
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeTransactionAborted = "transaction_aborted"
	ErrCodeQuotaExceeded      = "quota_exceeded"
	ErrCodeDatabaseError      = "database_error"
	ErrCodeSyncError          = "sync_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// Title renders s in the heading style.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Subtle renders s dimmed.
func Subtle(s string) string {
	return subtleStyle.Render(s)
}

// FormatSeverity formats a severity with color, empty for none
func FormatSeverity(s models.Severity) string {
	if s == "" {
		return ""
	}
	style, ok := severityStyle[s]
	if !ok {
		return fmt.Sprintf("[%s]", s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// SyncBadge shows whether a scan has reached the server.
func SyncBadge(synced bool) string {
	if synced {
		return syncedStyle.Render("✓ synced")
	}
	return pendingStyle.Render("● pending")
}

// FormatScanShort formats a scan in one line, cut to width when width > 0
func FormatScanShort(scan *models.Scan, width int) string {
	line := fmt.Sprintf("#%-5d %s  %s %s  %s",
		scan.ID,
		subtleStyle.Render(scan.Timestamp.Local().Format("2006-01-02 15:04")),
		scan.DiseaseLabel,
		FormatSeverity(scan.Severity),
		SyncBadge(scan.Synced),
	)
	if width > 0 {
		line = ansi.Truncate(line, width, "…")
	}
	return line
}

// FormatScanLong formats a scan with every field
func FormatScanLong(scan *models.Scan) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Scan #%d: %s", scan.ID, scan.DiseaseLabel)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Taken:      %s (%s)\n", scan.Timestamp.Local().Format(time.RFC1123), FormatTimeAgo(scan.Timestamp))
	if scan.Crop != "" {
		fmt.Fprintf(&sb, "Crop:       %s\n", scan.Crop)
	}
	if scan.Confidence > 0 {
		fmt.Fprintf(&sb, "Confidence: %.0f%%\n", scan.Confidence*100)
	}
	if scan.Severity != "" {
		fmt.Fprintf(&sb, "Severity:   %s\n", FormatSeverity(scan.Severity))
	}
	if scan.ImageRef != "" {
		fmt.Fprintf(&sb, "Image:      %s\n", scan.ImageRef)
	}
	fmt.Fprintf(&sb, "Sync:       %s\n", SyncBadge(scan.Synced))
	return sb.String()
}

// FormatSyncItem formats a pending sync item in one line
func FormatSyncItem(item *models.SyncItem) string {
	retries := ""
	if item.Retries > 0 {
		retries = warningStyle.Render(fmt.Sprintf(" retries:%d", item.Retries))
	}
	return fmt.Sprintf("#%-5d %-20s %s%s",
		item.ID, item.Action, subtleStyle.Render(FormatTimeAgo(item.Timestamp)), retries)
}

// FormatBytes renders n with a binary unit
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPENDING:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
