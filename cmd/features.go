package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/config"
	"github.com/marcus/agriscan/internal/features"
	"github.com/marcus/agriscan/internal/output"
)

var featuresCmd = &cobra.Command{
	Use:     "features",
	Short:   "List feature flags and where their values come from",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		type row struct {
			features.Feature
			Enabled bool   `json:"enabled"`
			Source  string `json:"source"`
		}
		var rows []row
		for _, f := range features.ListAll() {
			enabled, source := features.Resolve(getBaseDir(), f.Name)
			rows = append(rows, row{Feature: f, Enabled: enabled, Source: source})
		}
		if jsonOutput(cmd) {
			return output.JSON(rows)
		}
		for _, r := range rows {
			state := "off"
			if r.Enabled {
				state = "on"
			}
			fmt.Printf("%-16s %-3s %-8s %s\n", r.Name, state, output.Subtle(r.Source), r.Description)
		}
		return nil
	},
}

var featuresSetCmd = &cobra.Command{
	Use:   "set <name> <on|off>",
	Short: "Store a feature flag in the project config",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !features.IsKnownFeature(name) {
			return fail(cmd, fmt.Errorf("%w: unknown feature %q", errInvalidInput, name))
		}
		var enabled bool
		switch args[1] {
		case "on", "true", "1":
			enabled = true
		case "off", "false", "0":
		default:
			return fail(cmd, fmt.Errorf("%w: want on or off, got %q", errInvalidInput, args[1]))
		}

		err := config.Update(getBaseDir(), func(cfg *config.Config) error {
			if cfg.FeatureFlags == nil {
				cfg.FeatureFlags = map[string]bool{}
			}
			cfg.FeatureFlags[name] = enabled
			return nil
		})
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]any{"name": name, "enabled": enabled})
		}
		output.Success("%s set to %s", name, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(featuresCmd)
	featuresCmd.AddCommand(featuresSetCmd)
}
