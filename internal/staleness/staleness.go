// Package staleness scores how far the stored project maps have drifted
// from the project on disk. The score feeds the refresh decision: a high
// score calls for a full rebuild, a moderate one for an incremental pass.
package staleness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"projmap/internal/logging"
	"projmap/internal/project"
	"projmap/internal/repostate"
)

// Level buckets a staleness score into a human-readable severity.
type Level string

const (
	LevelFresh    Level = "fresh"
	LevelMinor    Level = "minor"
	LevelModerate Level = "moderate"
	LevelCritical Level = "critical"
)

// Score thresholds for refresh decisions.
const (
	// CriticalScore is the score at or above which a full refresh is called for.
	CriticalScore = 60
	// ModerateScore is the score at or above which an incremental refresh is
	// called for. Scores below it need no action.
	ModerateScore = 30
)

const (
	commitMismatchPoints = 40
	fileDeltaPointsEach  = 3
	fileDeltaMaxPoints   = 30
	agePointsPerDay      = 4
	ageMaxPoints         = 30
	graceDays            = 7
	maxScore             = 100
)

// Stored is the metadata the last refresh recorded for a project.
type Stored struct {
	GitCommit   string    `json:"gitCommit,omitempty"`
	FileCount   int       `json:"fileCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Current describes the project as observed at check time.
type Current struct {
	GitCommit string `json:"gitCommit,omitempty"`
	FileCount int    `json:"fileCount"`
	GitRepo   bool   `json:"gitRepo"`
}

// Result is the outcome of a staleness check.
type Result struct {
	Score     int       `json:"score"`
	Level     Level     `json:"level"`
	IsStale   bool      `json:"isStale"`
	Reasons   []string  `json:"reasons,omitempty"`
	Current   Current   `json:"current"`
	Stored    Stored    `json:"stored"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Checker computes staleness scores for a project.
type Checker struct {
	logger *logging.Logger
}

// NewChecker creates a staleness checker. A nil logger disables logging.
func NewChecker(logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Checker{logger: logger}
}

// Check compares the stored metadata against the project on disk and
// scores the drift. Three signals contribute independently: a moved git
// HEAD, a changed file count, and the age of the last refresh. The sum
// is clamped to 100.
func (c *Checker) Check(projectRoot string, stored Stored) *Result {
	now := time.Now()
	current := c.observe(projectRoot)

	result := &Result{
		Current:   current,
		Stored:    stored,
		CheckedAt: now.UTC(),
	}

	if pts := commitPoints(stored.GitCommit, current.GitCommit); pts > 0 {
		result.Score += pts
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"git HEAD moved from %s to %s",
			shortHash(stored.GitCommit), shortHash(current.GitCommit)))
	}

	if pts := fileDeltaPoints(stored.FileCount, current.FileCount); pts > 0 {
		result.Score += pts
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"file count changed from %d to %d",
			stored.FileCount, current.FileCount))
	}

	if pts := agePoints(stored.GeneratedAt, now); pts > 0 {
		result.Score += pts
		days := int(now.Sub(stored.GeneratedAt).Hours() / 24)
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"maps were last refreshed %d days ago", days))
	}

	if result.Score > maxScore {
		result.Score = maxScore
	}
	result.Level = levelFor(result.Score)
	result.IsStale = result.Score >= ModerateScore

	c.logger.Debug("staleness check complete", map[string]interface{}{
		"root":    projectRoot,
		"score":   result.Score,
		"level":   string(result.Level),
		"reasons": len(result.Reasons),
	})

	return result
}

// observe gathers the current project state. Inside a git repository the
// tracked file count comes from git; otherwise a directory walk stands in.
func (c *Checker) observe(projectRoot string) Current {
	var current Current

	if repostate.IsGitRepository(projectRoot) {
		current.GitRepo = true
		if head, err := repostate.HeadCommit(projectRoot); err == nil {
			current.GitCommit = head
		}
		if count, err := repostate.TrackedFileCount(projectRoot); err == nil {
			current.FileCount = count
			return current
		}
	}

	current.FileCount = walkFileCount(projectRoot)
	return current
}

// commitPoints scores a moved git HEAD. Either side being unknown means
// there is nothing to compare.
func commitPoints(stored, current string) int {
	if stored == "" || current == "" || stored == current {
		return 0
	}
	return commitMismatchPoints
}

// fileDeltaPoints scores the absolute change in file count, capped.
func fileDeltaPoints(stored, current int) int {
	delta := current - stored
	if delta < 0 {
		delta = -delta
	}
	points := delta * fileDeltaPointsEach
	if points > fileDeltaMaxPoints {
		points = fileDeltaMaxPoints
	}
	return points
}

// agePoints scores the days elapsed beyond the grace period since the
// last refresh, capped. An unknown or future timestamp scores nothing.
func agePoints(generatedAt, now time.Time) int {
	if generatedAt.IsZero() || !generatedAt.Before(now) {
		return 0
	}
	beyond := now.Sub(generatedAt).Hours()/24 - graceDays
	if beyond <= 0 {
		return 0
	}
	points := int(beyond * agePointsPerDay)
	if points > ageMaxPoints {
		points = ageMaxPoints
	}
	return points
}

func levelFor(score int) Level {
	switch {
	case score >= CriticalScore:
		return LevelCritical
	case score >= ModerateScore:
		return LevelModerate
	case score > 0:
		return LevelMinor
	default:
		return LevelFresh
	}
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

// walkFileCount counts files under root, skipping directories that hold
// generated or third-party content.
func walkFileCount(root string) int {
	count := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			// The root itself is never skipped, whatever it is named.
			if path == root {
				return nil
			}
			switch d.Name() {
			case "node_modules", ".git", "vendor", "dist", "build", "target", project.DefaultHomeDir:
				return filepath.SkipDir
			}
			return nil
		}
		count++
		return nil
	})
	return count
}
