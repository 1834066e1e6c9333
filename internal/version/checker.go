package version

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// UpdateAvailableMsg is sent when a new version is available.
type UpdateAvailableMsg struct {
	CurrentVersion string
	LatestVersion  string
	UpdateCommand  string
}

// CheckAsync returns a Bubble Tea command that checks for updates in background.
func CheckAsync(currentVersion string) tea.Cmd {
	return func() tea.Msg {
		if IsDevelopmentVersion(currentVersion) {
			return nil
		}
		if cached, err := LoadCache(); err == nil && IsCacheValid(cached, currentVersion) {
			if cached.HasUpdate {
				return updateMsg(currentVersion, cached.LatestVersion)
			}
			return nil
		}

		result := Check(context.Background(), currentVersion)

		// Only cache successful checks (don't cache network errors)
		if result.Error == nil {
			_ = SaveCache(&CacheEntry{
				LatestVersion:  result.LatestVersion,
				CurrentVersion: currentVersion,
				CheckedAt:      time.Now(),
				HasUpdate:      result.HasUpdate,
			})
		}

		if result.HasUpdate {
			return updateMsg(currentVersion, result.LatestVersion)
		}
		return nil
	}
}

func updateMsg(current, latest string) UpdateAvailableMsg {
	return UpdateAvailableMsg{
		CurrentVersion: current,
		LatestVersion:  latest,
		UpdateCommand:  UpdateCommand(latest),
	}
}
