package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run connectivity monitoring, periodic sync and eviction",
	Long: `Runs until interrupted. Probes the sync server, drains the queue when the
connection comes back, checks storage capacity and evicts old scans. When
reference_data is configured the file is reloaded on change.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m, cleanup, err := openManager(ctx, getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		slog.Info("daemon: started", "dir", getBaseDir(), "online", m.Connectivity().Online())
		if !jsonOutput(cmd) {
			fmt.Println("agriscan daemon running, press Ctrl+C to stop")
		}

		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fail(cmd, err)
		}
		slog.Info("daemon: stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
