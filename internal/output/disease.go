package output

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marcus/agriscan/internal/models"
)

// DiseaseMarkdown lays out a reference entry as markdown for RenderDisease.
// Free-text fields appear as sections in name order.
func DiseaseMarkdown(d *models.Disease) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", d.Name)
	if d.Category != "" {
		fmt.Fprintf(&sb, "*Category:* %s\n\n", d.Category)
	}

	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", headingCase(k), strings.TrimSpace(d.Fields[k]))
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// headingCase turns "treatment_options" into "Treatment options".
func headingCase(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
