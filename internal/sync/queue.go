package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcus/agriscan/internal/db"
	"github.com/marcus/agriscan/internal/models"
)

// Enqueue records an action for later delivery. v is stored as its JSON
// encoding so the item stays deliverable even if the record it describes
// is later evicted. scanID links a scan.create action to its scan; pass 0
// for anything else.
func Enqueue(ctx context.Context, store *db.Store, action string, v any, scanID int64) (*models.SyncItem, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action, err)
	}
	item := &models.SyncItem{Action: action, Payload: payload, ScanID: scanID}
	if _, err := store.EnqueueSync(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
