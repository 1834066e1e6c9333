package cmd

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/offline"
	"github.com/marcus/agriscan/internal/output"
	"github.com/marcus/agriscan/pkg/monitor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity, queue and storage status",
	Long: `Prints a one-shot summary. With --watch a live dashboard is shown instead.

Dashboard keys:
  r    Refresh now
  s    Sync now
  ?    Toggle help
  q    Quit`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil && !errors.Is(err, db.ErrStorageUnavailable) {
			return fail(cmd, err)
		}
		defer cleanup()

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval < 500*time.Millisecond {
				interval = 2 * time.Second
			}
			model := monitor.NewModel(m, interval, versionStr)
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running dashboard: %w", err)
			}
			return nil
		}

		st, err := m.Status(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(st)
		}
		printStatus(st)
		return nil
	},
}

func printStatus(st offline.Status) {
	if st.StorageDisabled {
		output.Warning("local storage disabled: %s", st.DisabledReason)
	}
	conn := "offline"
	if st.Online {
		conn = "online"
	}
	if !st.LastChange.IsZero() {
		conn += " since " + output.FormatTimeAgo(st.LastChange)
	}
	fmt.Printf("Connection: %s\n", conn)
	fmt.Printf("Scans:      %d (%d unsynced)\n", st.Scans, st.Unsynced)
	fmt.Printf("Queue:      %d pending\n", st.Pending)
	if st.Usage.Known {
		fmt.Printf("Storage:    %s of %s (%.1f%%)\n",
			output.FormatBytes(st.Usage.UsedBytes), output.FormatBytes(st.Usage.QuotaBytes), st.Usage.PercentageUsed)
	} else {
		fmt.Println("Storage:    unknown")
	}
	fmt.Printf("Level:      %d (%d points)\n", st.Level, st.Points)
	if st.LastDrain != nil {
		fmt.Printf("Last sync:  %s, delivered %d\n", output.FormatTimeAgo(st.LastDrain.At), st.LastDrain.Summary.Delivered)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolP("watch", "w", false, "Show a live dashboard")
	statusCmd.Flags().Duration("interval", 2*time.Second, "Dashboard refresh interval")
}
