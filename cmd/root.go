package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/config"
)

var (
	versionStr string
	baseDir    string

	// baseDirOverride lets tests point commands at a temp dir
	baseDirOverride *string
)

// SetVersion sets the version string
func SetVersion(v string) {
	versionStr = v
}

var rootCmd = &cobra.Command{
	Use:   "agriscan",
	Short: "Offline-first crop scan storage and sync",
	Long: `agriscan keeps crop-disease scan records on the device, queues them for
upload while offline, and delivers the queue in order once a connection is
back.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", "", "Data directory (default: $AGRISCAN_DIR or the working directory)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "scans", Title: "Scan Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "data", Title: "Reference Data:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.SetHelpCommandGroupID("system")
	rootCmd.SetCompletionCommandGroupID("system")
}

// setup resolves the base directory, loads .env and installs the logger.
func setup(cmd *cobra.Command, _ []string) error {
	dir, err := resolveBaseDir(cmd)
	if err != nil {
		return err
	}
	baseDir = dir

	if err := config.LoadEnv(baseDir); err != nil {
		slog.Warn("config: could not read .env", "err", err)
	}
	configureLogging(baseDir)
	return nil
}

// resolveBaseDir picks --dir, then AGRISCAN_DIR, then the working directory.
func resolveBaseDir(cmd *cobra.Command) (string, error) {
	if baseDirOverride != nil {
		return *baseDirOverride, nil
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = os.Getenv("AGRISCAN_DIR")
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("cannot determine working directory: %w", err)
		}
		return wd, nil
	}
	return filepath.Abs(dir)
}

func configureLogging(dir string) {
	opts := &slog.HandlerOptions{Level: config.LogLevel(dir)}
	var handler slog.Handler
	if strings.EqualFold(config.LogFormat(dir), "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// getBaseDir returns the resolved data directory
func getBaseDir() string {
	return baseDir
}

// jsonOutput reports whether --json was given
func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
