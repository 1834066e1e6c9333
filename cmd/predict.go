package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/agriscan/internal/dateparse"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/output"
)

var predictCmd = &cobra.Command{
	Use:     "predict",
	Short:   "Store and list outbreak predictions",
	GroupID: "scans",
}

var predictSaveCmd = &cobra.Command{
	Use:   "save <json|->",
	Short: "Store a prediction and queue it for upload",
	Long: `Stores an outbreak prediction for a day. The prediction body is any JSON
object, given inline or read from stdin with "-".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := []byte(args[0])
		if args[0] == "-" {
			var err error
			if body, err = io.ReadAll(os.Stdin); err != nil {
				return fail(cmd, err)
			}
		}
		if !json.Valid(body) {
			return fail(cmd, fmt.Errorf("%w: prediction is not valid JSON", errInvalidInput))
		}

		p := &models.Prediction{Data: body}
		if s, _ := cmd.Flags().GetString("date"); s != "" {
			d, err := dateparse.ParseSince(s)
			if err != nil {
				return fail(cmd, fmt.Errorf("%w: --date: %v", errInvalidInput, err))
			}
			p.Date = d
		}

		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		item, err := m.SavePrediction(cmd.Context(), p)
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]any{"prediction": p, "sync_item": item})
		}
		output.Success("STORED prediction #%d for %s", p.ID, p.Date.Local().Format("2006-01-02"))
		fmt.Printf("Queued for sync as #%d\n", item.ID)
		return nil
	},
}

var predictListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored predictions by date",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		list, err := m.Predictions(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			if list == nil {
				list = []models.Prediction{}
			}
			return output.JSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No predictions")
			return nil
		}
		for _, p := range list {
			fmt.Printf("#%-4d %s  %s\n", p.ID, p.Date.Local().Format("2006-01-02"), output.Subtle(string(p.Data)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.AddCommand(predictSaveCmd, predictListCmd)
	predictSaveCmd.Flags().String("date", "", "Day the prediction is for: today, yesterday, 2026-03-01 (default now)")
}
