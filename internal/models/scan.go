// Package models defines the records kept in the local scan store.
package models

import (
	"encoding/json"
	"time"
)

// Severity represents how far a detected disease has progressed
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Scan is one completed crop-disease scan.
// ID is assigned by the store and never changes. Synced only ever moves
// from false to true, and only when the matching sync item is delivered.
type Scan struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	DiseaseLabel string    `json:"disease_label"`
	ImageRef     string    `json:"image_ref,omitempty"`
	Synced       bool      `json:"synced"`
	Crop         string    `json:"crop,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Severity     Severity  `json:"severity,omitempty"`
}

// Disease is a cached disease reference row used for offline lookup.
// Name is the natural key; refreshes overwrite by name.
type Disease struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Category string            `json:"category" yaml:"category"`
	Fields   map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Prediction is a stored outbreak prediction for a given day.
type Prediction struct {
	ID   int64           `json:"id"`
	Date time.Time       `json:"date"`
	Data json.RawMessage `json:"data"`
}

// SyncItem is one pending outbound mutation. It exists until the remote
// side has confirmed delivery; delivery deletes it.
type SyncItem struct {
	ID             int64           `json:"id"`
	Action         string          `json:"action"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      time.Time       `json:"timestamp"`
	Retries        int             `json:"retries"`
	ScanID         int64           `json:"scan_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Sync actions enqueued by the scan flow
const (
	ActionScanCreate      = "scan.create"
	ActionPredictionSave  = "prediction.save"
	ActionAchievementSync = "achievement.unlock"
)
