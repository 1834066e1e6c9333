// Package refdata imports disease reference entries from JSON or YAML files
// into the store and keeps them fresh while the daemon runs.
package refdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marcus/agriscan/internal/models"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported reference data format")

// Store is the part of the record store a refresh needs.
type Store interface {
	PutDiseases(ctx context.Context, entries []models.Disease) error
}

// document is the wrapped file shape: {"diseases": [...]}. A bare list is
// accepted too.
type document struct {
	Diseases []models.Disease `json:"diseases" yaml:"diseases"`
}

// Parse decodes reference entries. format is "json" or "yaml"; empty
// sniffs the content.
func Parse(data []byte, format string) ([]models.Disease, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if format == "" {
		format = "yaml"
		if data[0] == '{' || data[0] == '[' {
			format = "json"
		}
	}

	switch format {
	case "json":
		if data[0] == '[' {
			var list []models.Disease
			if err := json.Unmarshal(data, &list); err != nil {
				return nil, fmt.Errorf("decode json: %w", err)
			}
			return list, nil
		}
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return doc.Diseases, nil
	case "yaml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			var list []models.Disease
			if err := node.Decode(&list); err != nil {
				return nil, fmt.Errorf("decode yaml: %w", err)
			}
			return list, nil
		}
		var doc document
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return doc.Diseases, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// formatFor picks a decoder by file extension.
func formatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and decodes the reference file at path.
func Load(path string) ([]models.Disease, error) {
	format, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Refresh loads path and writes every entry to the store in one bulk put.
// It returns the number of entries written.
func Refresh(ctx context.Context, store Store, path string) (int, error) {
	entries, err := Load(path)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := store.PutDiseases(ctx, entries); err != nil {
		return 0, fmt.Errorf("store reference data: %w", err)
	}
	slog.Debug("refdata: refreshed", "path", path, "count", len(entries))
	return len(entries), nil
}
