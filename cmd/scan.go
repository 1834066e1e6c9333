package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/agriscan/internal/dateparse"
	"github.com/marcus/agriscan/internal/models"
	"github.com/marcus/agriscan/internal/offline"
	"github.com/marcus/agriscan/internal/output"
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	Short:   "Record and inspect scans",
	GroupID: "scans",
}

var scanAddCmd = &cobra.Command{
	Use:   "add [disease]",
	Short: "Record a completed scan",
	Long: `Stores a scan, queues it for upload and credits it toward achievements.
Without a disease argument on a terminal, an interactive form is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := scanInputFromFlags(cmd, args)
		if err != nil {
			return fail(cmd, err)
		}
		if in.DiseaseLabel == "" {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fail(cmd, fmt.Errorf("%w: disease is required", errInvalidInput))
			}
			if err := runScanForm(&in); err != nil {
				return fail(cmd, err)
			}
		}

		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		res, err := m.RecordScan(cmd.Context(), in)
		if err != nil {
			return fail(cmd, err)
		}

		if jsonOutput(cmd) {
			return output.JSON(res)
		}
		output.Success("RECORDED scan #%d: %s", res.Scan.ID, res.Scan.DiseaseLabel)
		if res.SyncItem != nil {
			fmt.Printf("Queued for sync as #%d\n", res.SyncItem.ID)
		}
		for _, a := range res.Unlocked {
			fmt.Printf("%s Achievement unlocked: %s (+%d points)\n", a.Icon, a.Title, a.Points)
		}
		if d := res.Drain; d != nil && d.Delivered > 0 {
			fmt.Printf("Synced %d queued item(s)\n", d.Delivered)
		}
		return nil
	},
}

// scanInputFromFlags collects the scan fields given on the command line.
func scanInputFromFlags(cmd *cobra.Command, args []string) (offline.ScanInput, error) {
	var in offline.ScanInput
	if len(args) > 0 {
		in.DiseaseLabel = strings.TrimSpace(args[0])
	}
	in.ImageRef, _ = cmd.Flags().GetString("image")
	in.Crop, _ = cmd.Flags().GetString("crop")
	in.Accurate, _ = cmd.Flags().GetBool("accurate")

	conf, _ := cmd.Flags().GetFloat64("confidence")
	if conf < 0 || conf > 1 {
		return in, fmt.Errorf("%w: confidence must be between 0 and 1", errInvalidInput)
	}
	in.Confidence = conf

	sev, _ := cmd.Flags().GetString("severity")
	severity, err := parseSeverity(sev)
	if err != nil {
		return in, err
	}
	in.Severity = severity
	return in, nil
}

func parseSeverity(s string) (models.Severity, error) {
	switch sev := models.Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case "", models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("%w: severity %q (want low, medium, high or critical)", errInvalidInput, s)
	}
}

func runScanForm(in *offline.ScanInput) error {
	severity := string(in.Severity)
	confidence := ""
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Disease").
			Value(&in.DiseaseLabel).
			Placeholder("e.g. Late Blight").
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("disease is required")
				}
				return nil
			}),
		huh.NewInput().Title("Crop").Value(&in.Crop),
		huh.NewSelect[string]().
			Title("Severity").
			Options(
				huh.NewOption("none", ""),
				huh.NewOption("low", string(models.SeverityLow)),
				huh.NewOption("medium", string(models.SeverityMedium)),
				huh.NewOption("high", string(models.SeverityHigh)),
				huh.NewOption("critical", string(models.SeverityCritical)),
			).
			Value(&severity),
		huh.NewInput().
			Title("Confidence").
			Placeholder("0.0 - 1.0").
			Value(&confidence).
			Validate(func(s string) error {
				if s == "" {
					return nil
				}
				v, err := strconv.ParseFloat(s, 64)
				if err != nil || v < 0 || v > 1 {
					return fmt.Errorf("enter a number between 0 and 1")
				}
				return nil
			}),
		huh.NewConfirm().
			Title("Diagnosis confirmed?").
			Value(&in.Accurate),
	).Title("New Scan"))
	form.WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		return err
	}
	in.DiseaseLabel = strings.TrimSpace(in.DiseaseLabel)
	in.Severity = models.Severity(severity)
	if confidence != "" {
		in.Confidence, _ = strconv.ParseFloat(confidence, 64)
	}
	return nil
}

var scanListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List scans, newest first",
	Long: `Lists the newest scans. --since narrows to a window; --all lists every
stored scan in the order it was recorded and ignores --limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")
		sinceStr, _ := cmd.Flags().GetString("since")
		if limit <= 0 && !all {
			return fail(cmd, fmt.Errorf("%w: --limit must be positive, got %d", errInvalidInput, limit))
		}
		if all && sinceStr != "" {
			return fail(cmd, fmt.Errorf("%w: --all and --since cannot be combined", errInvalidInput))
		}

		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		var scans []models.Scan
		switch {
		case all:
			scans, err = m.Store().ListScans(cmd.Context())
		case sinceStr != "":
			since, perr := dateparse.ParseSince(sinceStr)
			if perr != nil {
				return fail(cmd, fmt.Errorf("%w: --since: %v", errInvalidInput, perr))
			}
			scans, err = m.Store().ScansSince(cmd.Context(), since, limit)
		default:
			scans, err = m.RecentScans(cmd.Context(), limit)
		}
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			if scans == nil {
				scans = []models.Scan{}
			}
			return output.JSON(scans)
		}
		if len(scans) == 0 {
			fmt.Println("No scans")
			return nil
		}
		width := output.TerminalWidth(100)
		for i := range scans {
			fmt.Println(output.FormatScanShort(&scans[i], width))
		}
		return nil
	},
}

var scanShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil {
			return fail(cmd, fmt.Errorf("%w: scan id %q", errInvalidInput, args[0]))
		}

		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		scan, err := m.Store().GetScan(cmd.Context(), id)
		if err != nil {
			return fail(cmd, err)
		}
		if scan == nil {
			return fail(cmd, fmt.Errorf("scan %d: %w", id, errNotFound))
		}
		if jsonOutput(cmd) {
			return output.JSON(scan)
		}
		fmt.Print(output.FormatScanLong(scan))
		return nil
	},
}

var scanCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cleanup, err := openManager(cmd.Context(), getBaseDir())
		if err != nil {
			return fail(cmd, err)
		}
		defer cleanup()

		n, err := m.ScansCount(cmd.Context())
		if err != nil {
			return fail(cmd, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]int{"count": n})
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.AddCommand(scanAddCmd, scanListCmd, scanShowCmd, scanCountCmd)

	scanAddCmd.Flags().String("image", "", "Reference to the captured image")
	scanAddCmd.Flags().String("crop", "", "Crop that was scanned")
	scanAddCmd.Flags().Float64("confidence", 0, "Model confidence between 0 and 1")
	scanAddCmd.Flags().String("severity", "", "Severity: low, medium, high or critical")
	scanAddCmd.Flags().Bool("accurate", false, "Diagnosis was confirmed")

	scanListCmd.Flags().IntP("limit", "n", 20, "Maximum scans to list")
	scanListCmd.Flags().Bool("all", false, "List every scan in recorded order")
	scanListCmd.Flags().String("since", "", "Only scans since: today, yesterday, 7d, 2w, 36h, monday, 2026-03-01")
}
