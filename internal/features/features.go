// Package features resolves named on/off switches for optional daemon
// behavior.
package features

import (
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/marcus/agriscan/internal/config"
)

// Feature describes a named feature flag.
type Feature struct {
	Name        string `json:"name"`
	Default     bool   `json:"default"`
	Description string `json:"description"`
}

var (
	// AutoEvict gates the scheduled eviction pass in the daemon.
	AutoEvict = Feature{
		Name:        "auto_evict",
		Default:     true,
		Description: "Evict old scans on a schedule while the daemon runs",
	}

	// ReferenceWatch gates reloading the reference data file on change.
	ReferenceWatch = Feature{
		Name:        "reference_watch",
		Default:     true,
		Description: "Reload reference_data when the file changes",
	}

	// DrainOnScan gates waking the sync queue right after a scan is recorded.
	DrainOnScan = Feature{
		Name:        "drain_on_scan",
		Default:     true,
		Description: "Start a drain as soon as a scan is recorded while online",
	}
)

var registry = []Feature{AutoEvict, DrainOnScan, ReferenceWatch}

// Where a resolved value came from.
const (
	SourceEnv     = "env"
	SourceConfig  = "config"
	SourceDefault = "default"
)

// Env names. The per-feature variable beats both lists.
const (
	envPrefix   = "AGRISCAN_FEATURE_"
	envDisabled = "AGRISCAN_DISABLE_FEATURES"
	envEnabled  = "AGRISCAN_ENABLE_FEATURES"
)

// ListAll returns every registered feature, by name.
func ListAll() []Feature {
	out := slices.Clone(registry)
	slices.SortFunc(out, func(a, b Feature) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func lookup(name string) (Feature, bool) {
	i := slices.IndexFunc(registry, func(f Feature) bool { return f.Name == name })
	if i < 0 {
		return Feature{}, false
	}
	return registry[i], true
}

// IsKnownFeature reports whether name is registered.
func IsKnownFeature(name string) bool {
	_, ok := lookup(canonical(name))
	return ok
}

// IsEnabled is Resolve without the source.
func IsEnabled(baseDir, name string) bool {
	on, _ := Resolve(baseDir, name)
	return on
}

// Resolve returns whether name is on and which layer decided it: the
// environment, then feature_flags in the config under baseDir, then the
// registered default. Unknown names default to off.
func Resolve(baseDir, name string) (bool, string) {
	name = canonical(name)
	if on, ok := fromEnv(name); ok {
		return on, SourceEnv
	}
	if baseDir != "" {
		if cfg, err := config.Load(baseDir); err == nil {
			if on, ok := cfg.FeatureFlags[name]; ok {
				return on, SourceConfig
			}
		}
	}
	f, _ := lookup(name)
	return f.Default, SourceDefault
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func fromEnv(name string) (bool, bool) {
	key := envPrefix + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, name)
	if on, ok := boolWords[canonical(os.Getenv(key))]; ok {
		return on, true
	}
	if listed(os.Getenv(envDisabled), name) {
		return false, true
	}
	if listed(os.Getenv(envEnabled), name) {
		return true, true
	}
	return false, false
}

var boolWords = map[string]bool{
	"1": true, "true": true, "on": true, "yes": true,
	"0": false, "false": false, "off": false, "no": false,
}

// listed reports whether name appears in a comma-separated list.
func listed(list, name string) bool {
	return slices.ContainsFunc(strings.Split(list, ","), func(item string) bool {
		return canonical(item) == name
	})
}
