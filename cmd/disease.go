package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/config"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/output"
	"github.com/marcus/agriscan/internal/refdata"
)

var diseaseCmd = &cobra.Command{
	Use:     "disease",
	Aliases: []string{"diseases"},
	Short:   "Offline disease reference data",
	GroupID: "data",
}

var diseaseLoadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Load disease entries from a JSON or YAML file",
	Long: `Replaces reference entries by name. Without a file argument the
configured reference_data path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getBaseDir()
		path := config.ReferenceData(dir)
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			return fail(cmd, fmt.Errorf("%w: no file given and reference_data is not set", errInvalidInput))
		}

		m, cleanup, err := openManager(cmd.Context(), dir)
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		n, err := refdata.Refresh(cmd.Context(), m.Store(), path)
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]any{"path": path, "loaded": n})
		}
		output.Success("loaded %d diseases from %s", n, path)
		return nil
	},
}

var diseaseSearchCmd = &cobra.Command{
	Use:     "search [query]",
	Aliases: []string{"list"},
	Short:   "Search diseases by name or category",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		category, _ := cmd.Flags().GetString("category")
		var found []models.Disease
		if query == "" && category != "" {
			found, err = m.Store().ListDiseasesByCategory(cmd.Context(), category)
			if err != nil {
				return fail(cmd, err)
			}
		} else {
			for d, err := range m.Store().SearchDiseases(cmd.Context(), query) {
				if err != nil {
					return fail(cmd, err)
				}
				if category != "" && d.Category != category {
					continue
				}
				found = append(found, d)
			}
		}

		if jsonOutput(cmd) {
			if found == nil {
				found = []models.Disease{}
			}
			return output.JSON(found)
		}
		if len(found) == 0 {
			fmt.Println("No diseases found")
			return nil
		}
		for _, d := range found {
			if d.Category != "" {
				fmt.Printf("%s  %s\n", d.Name, output.Subtle(d.Category))
			} else {
				fmt.Println(d.Name)
			}
		}
		return nil
	},
}

var diseaseShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a disease entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		d, err := m.Store().GetDiseaseByName(cmd.Context(), args[0])
		if err != nil {
			return fail(cmd, err)
		}
		if d == nil {
			d, err = m.Store().GetDisease(cmd.Context(), args[0])
			if err != nil {
				return fail(cmd, err)
			}
		}
		if d == nil {
			return fail(cmd, fmt.Errorf("disease %q: %w", args[0], errNotFound))
		}

		if jsonOutput(cmd) {
			return output.JSON(d)
		}
		md := output.DiseaseMarkdown(d)
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Print(md)
			return nil
		}
		rendered, err := output.RenderDisease(d, 0)
		if err != nil {
			fmt.Print(md)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(diseaseCmd)
	diseaseCmd.AddCommand(diseaseLoadCmd, diseaseSearchCmd, diseaseShowCmd)
	diseaseSearchCmd.Flags().String("category", "", "Only show this category")
	diseaseShowCmd.Flags().Bool("raw", false, "Print markdown without rendering")
}
