// Package dateparse turns relative and absolute date strings into the
// instant a time window starts at.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses a window start relative to the current time.
//
// Supported formats:
//   - Exact dates: "2026-03-01" (midnight, local time)
//   - Relative days: "7d" or "-7d"
//   - Relative weeks: "2w"
//   - Relative months: "1m"
//   - Durations: "36h", "90m30s"
//   - Day names: "monday", "tuesday", etc. (most recent occurrence)
//   - Keywords: "today", "yesterday", "last-week", "last-month"
func ParseSince(input string) (time.Time, error) {
	return ParseSinceFrom(input, time.Now())
}

// ParseSinceFrom parses input relative to now. Results never lie after now.
func ParseSinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	if t, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return t, nil
	}

	today := startOfDay(now)
	switch input {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	case "last-week":
		return today.AddDate(0, 0, -7), nil
	case "last-month":
		return today.AddDate(0, -1, 0), nil
	}

	// Go durations first so "90m" means minutes, not months
	if d, err := time.ParseDuration(strings.TrimPrefix(input, "-")); err == nil && strings.ContainsAny(input, "hs") {
		return now.Add(-d), nil
	}

	rel := strings.TrimPrefix(input, "-")
	if len(rel) >= 2 {
		suffix := rel[len(rel)-1]
		if n, err := strconv.Atoi(rel[:len(rel)-1]); err == nil && n >= 0 {
			switch suffix {
			case 'd':
				return today.AddDate(0, 0, -n), nil
			case 'w':
				return today.AddDate(0, 0, -7*n), nil
			case 'm':
				return today.AddDate(0, -n, 0), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use d, w, or m)", string(suffix), input)
			}
		}
	}

	dayMap := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if target, ok := dayMap[input]; ok {
		daysBack := (int(now.Weekday()) - int(target) + 7) % 7
		return today.AddDate(0, 0, -daysBack), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
