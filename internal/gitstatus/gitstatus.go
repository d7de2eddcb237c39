package gitstatus

import (
	"bytes"
	"os/exec"

	"projmap/internal/logging"
	"projmap/internal/repostate"
)

// StatusCode is the git state vocabulary recorded on file records.
type StatusCode string

const (
	ModifiedStaged   StatusCode = "modified-staged"
	ModifiedUnstaged StatusCode = "modified-unstaged"
	ModifiedBoth     StatusCode = "modified-both"
	Added            StatusCode = "added"
	Deleted          StatusCode = "deleted"
	Renamed          StatusCode = "renamed"
	Copied           StatusCode = "copied"
	Untracked        StatusCode = "untracked"
	Ignored          StatusCode = "ignored"
	Tracked          StatusCode = "tracked"
	Unknown          StatusCode = "unknown"
	NotInRepo        StatusCode = "not-in-repo"
)

// Provider answers per-file git status questions during a scan.
type Provider interface {
	// Status returns the code for a project-relative path (forward slashes).
	Status(rel string) StatusCode
	// Snapshot returns a copy of every non-clean path and its code.
	Snapshot() map[string]StatusCode
}

// NewProvider builds a status provider for the project. The porcelain
// status runs exactly once here; every Status call afterwards is a map
// lookup. Outside a git repository (or when git fails) the null provider
// reports not-in-repo for every path.
func NewProvider(projectRoot string, logger *logging.Logger) Provider {
	if !repostate.IsGitRepository(projectRoot) {
		return NullProvider{}
	}

	cmd := exec.Command("git", "status", "--porcelain", "-z", "--untracked-files=all", "--ignored")
	cmd.Dir = projectRoot
	output, err := cmd.Output()
	if err != nil {
		logger.Warn("git status failed, file statuses unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return NullProvider{}
	}

	return &gitProvider{statuses: parsePorcelain(output)}
}

type gitProvider struct {
	statuses map[string]StatusCode
}

func (p *gitProvider) Status(rel string) StatusCode {
	if code, ok := p.statuses[rel]; ok {
		return code
	}
	// Inside a repository, paths without a porcelain entry are clean
	return Tracked
}

func (p *gitProvider) Snapshot() map[string]StatusCode {
	out := make(map[string]StatusCode, len(p.statuses))
	for k, v := range p.statuses {
		out[k] = v
	}
	return out
}

// NullProvider serves scans outside a git repository and quick scans.
type NullProvider struct{}

func (NullProvider) Status(rel string) StatusCode    { return NotInRepo }
func (NullProvider) Snapshot() map[string]StatusCode { return map[string]StatusCode{} }

// parsePorcelain decodes `git status --porcelain -z` output. Entries are
// NUL-separated "XY path"; rename and copy entries are followed by the
// original path as an extra NUL field, which is consumed here.
func parsePorcelain(output []byte) map[string]StatusCode {
	statuses := make(map[string]StatusCode)

	fields := bytes.Split(output, []byte{0})
	for i := 0; i < len(fields); i++ {
		entry := fields[i]
		if len(entry) < 4 {
			continue
		}

		x, y := entry[0], entry[1]
		path := string(entry[3:])
		statuses[path] = classify(x, y)

		// R and C entries carry the original path in the next field
		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			i++
		}
	}

	return statuses
}

// classify maps a porcelain XY pair onto the status vocabulary. X is the
// index state, Y the working tree state.
func classify(x, y byte) StatusCode {
	switch {
	case x == '?' && y == '?':
		return Untracked
	case x == '!' && y == '!':
		return Ignored
	case x == 'R' || y == 'R':
		return Renamed
	case x == 'C' || y == 'C':
		return Copied
	case x == 'D' || y == 'D':
		return Deleted
	case x == 'A':
		return Added
	case x == 'M' && y == 'M':
		return ModifiedBoth
	case x == 'M':
		return ModifiedStaged
	case y == 'M':
		return ModifiedUnstaged
	default:
		return Unknown
	}
}
