package achievement

import (
	"encoding/json"
	"slices"
	"time"
)

// PointsPerLevel is how many points separate consecutive levels.
const PointsPerLevel = 100

// LevelFor returns the level earned by points.
func LevelFor(points int) int {
	return points/PointsPerLevel + 1
}

// DiseaseSet is the set of distinct diseases identified so far. It is
// stored as a sorted JSON array.
type DiseaseSet map[string]struct{}

func (s DiseaseSet) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return json.Marshal(ids)
}

func (s *DiseaseSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = make(DiseaseSet, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}
	return nil
}

// State is a user's accumulated progress. Level always equals
// LevelFor(TotalPoints) and LongestStreak is never below CurrentStreak.
type State struct {
	TotalScans         int                  `json:"total_scans"`
	AccurateScans      int                  `json:"accurate_scans"`
	CurrentStreak      int                  `json:"current_streak"`
	LongestStreak      int                  `json:"longest_streak"`
	TotalPoints        int                  `json:"total_points"`
	Level              int                  `json:"level"`
	DiseasesIdentified DiseaseSet           `json:"diseases_identified"`
	LastScanDate       *time.Time           `json:"last_scan_date,omitempty"`
	Unlocked           map[string]time.Time `json:"unlocked"`
}

// NewState returns the zero-progress state of a first-time user.
func NewState() State {
	return State{
		Level:              1,
		DiseasesIdentified: DiseaseSet{},
		Unlocked:           map[string]time.Time{},
	}
}

// normalize restores the invariants on state read back from storage.
func (s *State) normalize() {
	if s.DiseasesIdentified == nil {
		s.DiseasesIdentified = DiseaseSet{}
	}
	if s.Unlocked == nil {
		s.Unlocked = map[string]time.Time{}
	}
	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	s.Level = LevelFor(s.TotalPoints)
}

// RecordScan folds one completed scan into the counters.
func (s *State) RecordScan(diseaseID string, accurate bool, now time.Time) {
	s.normalize()
	s.TotalScans++
	if accurate {
		s.AccurateScans++
	}
	s.CurrentStreak = nextStreak(s.CurrentStreak, s.LastScanDate, now)
	s.LongestStreak = max(s.LongestStreak, s.CurrentStreak)
	if diseaseID != "" {
		s.DiseasesIdentified[diseaseID] = struct{}{}
	}
	at := now
	s.LastScanDate = &at
}

// nextStreak continues the streak when the previous scan was at most one
// whole day ago, and starts a new one otherwise.
func nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	elapsed := now.Sub(*last)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	if int(elapsed/(24*time.Hour)) <= 1 {
		return current + 1
	}
	return 1
}

// progress returns the counter def is measured against.
func (s *State) progress(def Definition) int {
	switch def.Category {
	case CategoryScans:
		return s.TotalScans
	case CategoryAccuracy:
		return s.AccurateScans
	case CategoryStreak:
		return s.CurrentStreak
	case CategoryLearning:
		return len(s.DiseasesIdentified)
	}
	return 0
}

// Evaluate unlocks every still-locked achievement whose target is met,
// awards its points once and returns what was unlocked by this call.
func (s *State) Evaluate(now time.Time) []Achievement {
	s.normalize()
	var unlocked []Achievement
	for _, def := range Catalog {
		if _, done := s.Unlocked[def.ID]; done {
			continue
		}
		p := s.progress(def)
		if p < def.Target {
			continue
		}
		s.Unlocked[def.ID] = now
		s.TotalPoints += def.Points
		at := now
		unlocked = append(unlocked, Achievement{Definition: def, Progress: p, Unlocked: true, UnlockedAt: &at})
	}
	s.Level = LevelFor(s.TotalPoints)
	return unlocked
}

// Achievement is a catalog entry together with the user's standing on it.
type Achievement struct {
	Definition
	Progress   int        `json:"progress"`
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Achievements lists the whole catalog with current progress. Unlocked
// entries keep showing at least their target.
func (s *State) Achievements() []Achievement {
	out := make([]Achievement, 0, len(Catalog))
	for _, def := range Catalog {
		a := Achievement{Definition: def, Progress: s.progress(def)}
		if at, ok := s.Unlocked[def.ID]; ok {
			a.Unlocked = true
			a.UnlockedAt = &at
			a.Progress = max(a.Progress, def.Target)
		}
		out = append(out, a)
	}
	return out
}
