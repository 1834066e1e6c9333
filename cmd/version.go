package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/output"
	"github.com/marcus/agriscan/internal/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the version",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		check, _ := cmd.Flags().GetBool("check")
		if !check {
			if jsonOutput(cmd) {
				return output.JSON(map[string]string{"version": versionStr})
			}
			fmt.Printf("agriscan %s\n", versionStr)
			return nil
		}

		res := version.Check(cmd.Context(), versionStr)
		if res.Error != nil {
			return fail(cmd, fmt.Errorf("version check: %w", res.Error))
		}
		if jsonOutput(cmd) {
			return output.JSON(res)
		}
		fmt.Printf("agriscan %s\n", versionStr)
		switch {
		case version.IsDevelopmentVersion(versionStr):
			fmt.Println("Development build, update check skipped")
		case res.HasUpdate:
			output.Info("update available: %s", res.LatestVersion)
			if c := version.UpdateCommand(res.LatestVersion); c != "" {
				fmt.Printf("  %s\n", c)
			}
		default:
			fmt.Println("Up to date")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("check", false, "Check for a newer release")
}
