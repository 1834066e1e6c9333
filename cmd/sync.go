package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/output"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "List pending sync actions in delivery order",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		items, err := m.SyncQueue(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			if items == nil {
				items = []models.SyncItem{}
			}
			return output.JSON(items)
		}
		if len(items) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}
		fmt.Println(output.SectionHeader(fmt.Sprintf("PENDING (%d)", len(items))))
		for i := range items {
			fmt.Println("  " + output.FormatSyncItem(&items[i]))
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Deliver pending actions to the sync server now",
	Long: `Drains the sync queue oldest first. The first failed delivery stops the
drain; that item and everything behind it stay queued for the next attempt.
Without a configured sync_url the queue is delivered to the log instead.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		sum, err := m.Drain(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(sum)
		}
		switch {
		case sum.Busy:
			output.Warning("another process is syncing; %d pending", sum.Remaining)
		case sum.Halted:
			output.Warning("delivered %d, halted with %d pending: %s", sum.Delivered, sum.Remaining, sum.LastError)
		case sum.Delivered == 0:
			fmt.Println("Nothing to sync")
		default:
			output.Success("delivered %d", sum.Delivered)
		}
		return nil
	},
}

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Remove the oldest scans beyond the retention limit",
	Long: `Keeps the newest 1000 scans and deletes the rest. With --if-needed the
pass only runs when storage utilization is above 80%.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		ifNeeded, _ := cmd.Flags().GetBool("if-needed")
		res, err := m.Evict(cmd.Context(), ifNeeded)
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(res)
		}
		if res.Skipped {
			fmt.Println("Storage below threshold, nothing evicted")
			return nil
		}
		if res.Evicted == 0 {
			fmt.Printf("Nothing to evict (%d scans)\n", res.Considered)
			return nil
		}
		output.Success("evicted %d of %d scans", res.Evicted, res.Considered)
		return nil
	},
}

var storageCmd = &cobra.Command{
	Use:     "storage",
	Short:   "Show storage usage and collection sizes",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		usage := m.StorageInfo(cmd.Context())
		counts, err := collectionCounts(cmd, m.Store())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]any{
				"usage":       usage,
				"collections": counts,
			})
		}
		if usage.Known {
			fmt.Printf("Usage: %s of %s (%.1f%%)\n",
				output.FormatBytes(usage.UsedBytes), output.FormatBytes(usage.QuotaBytes), usage.PercentageUsed)
		} else {
			fmt.Println("Usage: unknown")
		}
		for _, c := range counts {
			fmt.Printf("  %-12s %d\n", c.Name, c.Count)
		}
		return nil
	},
}

type collectionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// collectionCounts lists every collection's size in db.Collections order.
func collectionCounts(cmd *cobra.Command, store *db.Store) ([]collectionCount, error) {
	counts, err := store.Counts(cmd.Context())
	if err != nil {
		return nil, err
	}
	out := make([]collectionCount, 0, len(db.Collections))
	for _, c := range db.Collections {
		out = append(out, collectionCount{Name: string(c), Count: counts[c]})
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(queueCmd, syncCmd, evictCmd, storageCmd)
	evictCmd.Flags().Bool("if-needed", false, "Only evict when storage utilization is high")
}
