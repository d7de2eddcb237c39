package differ

import (
	"fmt"
	"sort"
	"strings"
)

// Thresholds configure anomaly detection. Zero values fall back to
// the defaults.
type Thresholds struct {
	MassRemoval     int
	FileChangeRatio float64
	DepChangeRatio  float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{MassRemoval: 20, FileChangeRatio: 0.30, DepChangeRatio: 0.50}
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.MassRemoval <= 0 {
		t.MassRemoval = def.MassRemoval
	}
	if t.FileChangeRatio <= 0 {
		t.FileChangeRatio = def.FileChangeRatio
	}
	if t.DepChangeRatio <= 0 {
		t.DepChangeRatio = def.DepChangeRatio
	}
	return t
}

var lockfileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"cargo.lock":        true,
	"gemfile.lock":      true,
	"poetry.lock":       true,
	"composer.lock":     true,
}

// Detect flags diff patterns that usually mean a broken scan or a
// misconfigured project rather than real change: mass removals, very
// high churn, and changed paths that a healthy configuration would
// have excluded. The report itself is never mutated.
func Detect(report *Report, th Thresholds) []Warning {
	th = th.withDefaults()
	var warnings []Warning

	files := report.Sections["files"]
	if files.Stats.Removed >= th.MassRemoval {
		warnings = append(warnings, Warning{
			Code:    "mass-removal",
			Message: fmt.Sprintf("%d files removed in a single refresh", files.Stats.Removed),
		})
	}
	if w, ok := churnWarning("high-file-churn", "files", files, th.FileChangeRatio); ok {
		warnings = append(warnings, w)
	}
	if w, ok := churnWarning("high-dependency-churn", "dependencies", report.Sections["dependencies"], th.DepChangeRatio); ok {
		warnings = append(warnings, w)
	}

	if w, ok := suspiciousPathWarning(files); ok {
		warnings = append(warnings, w)
	}
	return warnings
}

// churnWarning fires when the changed share of a section passes the
// ratio threshold. The previous generation's size is the base, so a
// first-ever diff (everything added) never counts as churn.
func churnWarning(code, name string, section SectionDiff, ratio float64) (Warning, bool) {
	oldTotal := section.Stats.Removed + section.Stats.Modified + section.Stats.Unchanged
	if oldTotal == 0 {
		return Warning{}, false
	}
	changed := section.Stats.Added + section.Stats.Removed + section.Stats.Modified
	share := float64(changed) / float64(oldTotal)
	if share < ratio {
		return Warning{}, false
	}
	return Warning{
		Code:    code,
		Message: fmt.Sprintf("%.0f%% of %s changed (%d of %d)", share*100, name, changed, oldTotal),
	}, true
}

func suspiciousPathWarning(files SectionDiff) (Warning, bool) {
	var hits []string
	for _, key := range changedKeys(files) {
		if isSuspiciousPath(key) {
			hits = append(hits, key)
		}
	}
	if len(hits) == 0 {
		return Warning{}, false
	}
	sort.Strings(hits)
	return Warning{
		Code: "suspicious-paths",
		Message: fmt.Sprintf("%d changed paths look like vendored, VCS or lockfile content (e.g. %s)",
			len(hits), hits[0]),
	}, true
}

func changedKeys(section SectionDiff) []string {
	keys := make([]string, 0, len(section.Added)+len(section.Removed)+len(section.Modified))
	keys = append(keys, section.Added...)
	keys = append(keys, section.Removed...)
	for _, m := range section.Modified {
		keys = append(keys, m.Key)
	}
	return keys
}

func isSuspiciousPath(path string) bool {
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "node_modules" || seg == ".git" {
			return true
		}
	}
	return lockfileNames[strings.ToLower(segments[len(segments)-1])]
}
