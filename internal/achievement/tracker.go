// Package achievement awards achievements from accumulated scan activity.
package achievement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DocumentKey is where the state lives in the document store.
const DocumentKey = "achievements"

// DocumentStore persists whole JSON documents. *db.Store implements it.
type DocumentStore interface {
	LoadDocument(ctx context.Context, key string, v any) (bool, error)
	SaveDocument(ctx context.Context, key string, v any) error
}

// Tracker reads, updates and writes back the state on every change.
type Tracker struct {
	store DocumentStore
	now   func() time.Time
	mu    sync.Mutex
}

// NewTracker returns a tracker over store using the wall clock.
func NewTracker(store DocumentStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock returns a copy of t that reads time from now.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	return &Tracker{store: t.store, now: now}
}

// State returns the stored state, or a fresh one for a new user.
func (t *Tracker) State(ctx context.Context) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// RecordScan adds one completed scan and persists the result.
func (t *Tracker) RecordScan(ctx context.Context, diseaseID string, accurate bool) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.load(ctx)
	if err != nil {
		return State{}, err
	}
	s.RecordScan(diseaseID, accurate, t.now())
	if err := t.save(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// Evaluate unlocks what the counters now qualify for and returns only the
// achievements unlocked by this call.
func (t *Tracker) Evaluate(ctx context.Context) ([]Achievement, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	unlocked := s.Evaluate(t.now())
	if len(unlocked) == 0 {
		return nil, nil
	}
	if err := t.save(ctx, s); err != nil {
		return nil, err
	}
	for _, a := range unlocked {
		slog.Info("achievement: unlocked", "id", a.ID, "points", a.Points, "level", s.Level)
	}
	return unlocked, nil
}

// Achievements returns the catalog with the user's progress.
func (t *Tracker) Achievements(ctx context.Context) ([]Achievement, error) {
	s, err := t.State(ctx)
	if err != nil {
		return nil, err
	}
	return s.Achievements(), nil
}

func (t *Tracker) load(ctx context.Context) (State, error) {
	s := NewState()
	if _, err := t.store.LoadDocument(ctx, DocumentKey, &s); err != nil {
		return State{}, fmt.Errorf("load achievements: %w", err)
	}
	s.normalize()
	return s, nil
}

func (t *Tracker) save(ctx context.Context, s State) error {
	if err := t.store.SaveDocument(ctx, DocumentKey, s); err != nil {
		return fmt.Errorf("save achievements: %w", err)
	}
	return nil
}
