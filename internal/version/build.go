package version

import (
	"runtime/debug"
	"strings"
)

// Resolve picks the version agriscan reports. A release tag injected at
// link time wins; then the module version recorded by `go install
// pkg@vX.Y.Z`; then "devel+<revision>" from VCS stamping, with "+dirty"
// for a modified tree. Failing all of those it returns injected as is.
func Resolve(injected string) string {
	info, _ := debug.ReadBuildInfo()
	return resolve(injected, info)
}

func resolve(injected string, info *debug.BuildInfo) string {
	if !IsDevelopmentVersion(injected) || info == nil {
		return injected
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return injected
	}
	parts := []string{"devel", rev[:min(len(rev), 12)]}
	if dirty {
		parts = append(parts, "dirty")
	}
	return strings.Join(parts, "+")
}
