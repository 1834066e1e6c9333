package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/output"
)

var achievementsCmd = &cobra.Command{
	Use:     "achievements",
	Short:   "Show achievement progress",
	GroupID: "scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		list, err := m.Achievements(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(list)
		}

		unlockedOnly, _ := cmd.Flags().GetBool("unlocked")
		points := 0
		for _, a := range list {
			if a.Unlocked {
				points += a.Points
			} else if unlockedOnly {
				continue
			}
			mark := " "
			if a.Unlocked {
				mark = "✓"
			}
			fmt.Printf("%s %s %-22s %3d/%-3d %s\n", mark, a.Icon, a.Title, min(a.Progress, a.Target), a.Target,
				output.Subtle(a.Description))
		}
		fmt.Printf("\nPoints: %d\n", points)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(achievementsCmd)
	achievementsCmd.Flags().Bool("unlocked", false, "Only list unlocked achievements")
}
