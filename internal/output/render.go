package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"golang.org/x/term"

	"github.com/marcus/agriscan/internal/models"
)

// Disease cards wrap at the terminal width but never narrower than this.
const minCardWidth = 40

// TerminalWidth reports the width of stdout, then $COLUMNS, then fallback.
func TerminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return fallback
}

// RenderDisease renders a reference entry as a terminal card. A width of
// zero or less uses the terminal width. Piped output gets the plain style
// so it stays free of escape codes.
func RenderDisease(d *models.Disease, width int) (string, error) {
	if width <= 0 {
		width = TerminalWidth(100)
	}
	style := styles.NoTTYStyle
	if term.IsTerminal(int(os.Stdout.Fd())) {
		style = styles.DraculaStyle
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width, minCardWidth)),
		// Treatment steps are often one per line
		glamour.WithPreservedNewLines(),
		glamour.WithEmoji(),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(DiseaseMarkdown(d))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
