package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/config"
	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Create the local scan store",
	Long:    `Creates the .agriscan directory, the SQLite database and a config file with a device id.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()

		existed := false
		if _, err := os.Stat(filepath.Join(dir, ".agriscan", "agriscan.db")); err == nil {
			existed = true
		}

		m, cleanup, err := openManager(cmd.Context(), dir)
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		deviceID, err := config.DeviceID(dir)
		if err != nil {
			return fail(cmd, err)
		}
		version, err := m.Store().SchemaVersion(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}

		if jsonOutput(cmd) {
			return output.JSON(map[string]any{
				"path":           m.Store().Path(),
				"device_id":      deviceID,
				"schema_version": version,
				"created":        !existed,
			})
		}
		if existed {
			output.Warning(".agriscan/ already exists")
		} else {
			fmt.Println("INITIALIZED .agriscan/")
		}
		fmt.Printf("Database: %s (schema v%d of %d)\n", m.Store().Path(), version, db.SchemaVersion)
		fmt.Printf("Device:   %s\n", deviceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
