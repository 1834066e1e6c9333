package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/marcus/agriscan/internal/models"
)

// ErrInvalidDisease is returned by PutDiseases for an entry without a name.
var ErrInvalidDisease = errors.New("disease entry needs a name")

// DiseaseID derives a stable id from a disease name.
func DiseaseID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// PutDiseases replaces reference entries by name in a single transaction.
// Either every entry is written or none is. Entries without an ID get one
// derived from their name.
func (s *Store) PutDiseases(ctx context.Context, entries []models.Disease) error {
	for i := range entries {
		if strings.TrimSpace(entries[i].Name) == "" {
			return fmt.Errorf("entry %d: %w", i, ErrInvalidDisease)
		}
		if entries[i].ID == "" {
			entries[i].ID = DiseaseID(entries[i].Name)
		}
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		del, err := tx.PrepareContext(ctx, "DELETE FROM diseases WHERE name = ? OR id = ?")
		if err != nil {
			return err
		}
		defer del.Close()
		ins, err := tx.PrepareContext(ctx, "INSERT INTO diseases (id, name, category, fields) VALUES (?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer ins.Close()

		for _, d := range entries {
			fields, err := json.Marshal(d.Fields)
			if err != nil {
				return fmt.Errorf("encode fields for %q: %w", d.Name, err)
			}
			if _, err := del.ExecContext(ctx, d.Name, d.ID); err != nil {
				return err
			}
			if _, err := ins.ExecContext(ctx, d.ID, d.Name, d.Category, string(fields)); err != nil {
				return fmt.Errorf("put %q: %w", d.Name, err)
			}
		}
		return nil
	})
}

// GetDisease returns the entry with the given id, or nil if there is none.
func (s *Store) GetDisease(ctx context.Context, id string) (*models.Disease, error) {
	return s.getDisease(ctx, "id", id)
}

// GetDiseaseByName looks an entry up by its natural key, ignoring case.
func (s *Store) GetDiseaseByName(ctx context.Context, name string) (*models.Disease, error) {
	return s.getDisease(ctx, "name COLLATE NOCASE", name)
}

func (s *Store) getDisease(ctx context.Context, column, value string) (*models.Disease, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	row := conn.QueryRowContext(ctx, "SELECT id, name, category, fields FROM diseases WHERE "+column+" = ?", value)
	d, err := scanDisease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get disease %q: %w", value, err)
	}
	return d, nil
}

// ListDiseases returns every entry in id order.
func (s *Store) ListDiseases(ctx context.Context) ([]models.Disease, error) {
	return s.queryDiseases(ctx, "SELECT id, name, category, fields FROM diseases ORDER BY id")
}

// ListDiseasesByCategory returns the entries in one category, by name.
func (s *Store) ListDiseasesByCategory(ctx context.Context, category string) ([]models.Disease, error) {
	return s.queryDiseases(ctx, "SELECT id, name, category, fields FROM diseases WHERE category = ? ORDER BY name", category)
}

// SearchDiseases matches query against name and category, case-insensitively.
// An empty query matches everything.
func (s *Store) SearchDiseases(ctx context.Context, query string) iter.Seq2[models.Disease, error] {
	q := strings.ToLower(strings.TrimSpace(query))
	return Search(ctx, s.ListDiseases, func(d models.Disease) bool {
		return strings.Contains(strings.ToLower(d.Name), q) ||
			strings.Contains(strings.ToLower(d.Category), q)
	})
}

func (s *Store) queryDiseases(ctx context.Context, query string, args ...any) ([]models.Disease, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diseases: %w", err)
	}
	defer rows.Close()

	var out []models.Disease
	for rows.Next() {
		d, err := scanDisease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDisease(r rowScanner) (*models.Disease, error) {
	var d models.Disease
	var fields string
	if err := r.Scan(&d.ID, &d.Name, &d.Category, &fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
		return nil, fmt.Errorf("decode fields for %q: %w", d.Name, err)
	}
	return &d, nil
}
