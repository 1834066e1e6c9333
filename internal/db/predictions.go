package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/agriscan/internal/models"
)

// InsertPrediction stores a prediction and sets its ID. A zero Date means today.
func (s *Store) InsertPrediction(ctx context.Context, p *models.Prediction) (int64, error) {
	preparePrediction(p)
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return insertPrediction(ctx, tx, p)
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// InsertPredictionQueued stores p and its prediction.save sync item in one
// transaction.
func (s *Store) InsertPredictionQueued(ctx context.Context, p *models.Prediction) (*models.SyncItem, error) {
	preparePrediction(p)
	item := &models.SyncItem{Action: models.ActionPredictionSave}
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if err := insertPrediction(ctx, tx, p); err != nil {
			return err
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode prediction payload: %w", err)
		}
		item.Payload = payload
		if err := prepareSyncItem(item); err != nil {
			return err
		}
		return insertSyncItem(ctx, tx, item)
	})
	if err != nil {
		p.ID = 0
		return nil, err
	}
	return item, nil
}

func preparePrediction(p *models.Prediction) {
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	if len(p.Data) == 0 {
		p.Data = json.RawMessage("{}")
	}
}

func insertPrediction(ctx context.Context, tx *sql.Tx, p *models.Prediction) error {
	res, err := tx.ExecContext(ctx, "INSERT INTO predictions (date, data) VALUES (?, ?)",
		formatTime(p.Date), string(p.Data))
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

// GetPrediction returns the prediction with the given id, or nil.
func (s *Store) GetPrediction(ctx context.Context, id int64) (*models.Prediction, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPrediction(conn.QueryRowContext(ctx, "SELECT id, date, data FROM predictions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction %d: %w", id, err)
	}
	return p, nil
}

// ListPredictions returns every prediction ordered by date.
func (s *Store) ListPredictions(ctx context.Context) ([]models.Prediction, error) {
	conn, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, "SELECT id, date, data FROM predictions ORDER BY date, id")
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var out []models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPrediction(r rowScanner) (*models.Prediction, error) {
	var p models.Prediction
	var date, data string
	if err := r.Scan(&p.ID, &date, &data); err != nil {
		return nil, err
	}
	t, err := parseTime(date)
	if err != nil {
		return nil, err
	}
	p.Date = t
	p.Data = json.RawMessage(data)
	return &p, nil
}
