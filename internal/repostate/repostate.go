package repostate

import (
	"bytes"
	"os/exec"
	"strings"
	"time"

	"projmap/internal/errors"
)

// State captures the git facts staleness checks compare against.
type State struct {
	HeadCommit   string `json:"headCommit"`
	Dirty        bool   `json:"dirty"`
	TrackedFiles int    `json:"trackedFiles"`
	ComputedAt   string `json:"computedAt"`
}

// Compute gathers the current repository state using git commands.
// The caller is expected to have verified this is a git repository.
func Compute(projectRoot string) (*State, error) {
	head, err := HeadCommit(projectRoot)
	if err != nil {
		return nil, errors.New(
			errors.InternalError,
			"failed to read HEAD commit",
			err,
		)
	}

	tracked, err := TrackedFileCount(projectRoot)
	if err != nil {
		return nil, errors.New(
			errors.InternalError,
			"failed to count tracked files",
			err,
		)
	}

	return &State{
		HeadCommit:   head,
		Dirty:        IsDirty(projectRoot),
		TrackedFiles: tracked,
		ComputedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// HeadCommit returns the full hash of HEAD. A repository with no commits
// yet returns an empty string and no error.
func HeadCommit(projectRoot string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = projectRoot

	output, err := cmd.Output()
	if err != nil {
		// Fresh repositories have no HEAD to resolve
		if _, verifyErr := runGit(projectRoot, "rev-parse", "--git-dir"); verifyErr == nil {
			return "", nil
		}
		return "", err
	}

	return strings.TrimSpace(string(output)), nil
}

// IsDirty reports whether the working tree or index has any changes,
// including untracked files.
func IsDirty(projectRoot string) bool {
	output, err := runGit(projectRoot, "status", "--porcelain")
	if err != nil {
		return false
	}
	return len(bytes.TrimSpace(output)) > 0
}

// TrackedFileCount counts the files git knows about at HEAD plus the index.
func TrackedFileCount(projectRoot string) (int, error) {
	output, err := runGit(projectRoot, "ls-files", "-z")
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range bytes.Split(output, []byte{0}) {
		if len(entry) > 0 {
			count++
		}
	}
	return count, nil
}

// IsGitRepository checks if the given path is inside a git repository
func IsGitRepository(projectRoot string) bool {
	_, err := runGit(projectRoot, "rev-parse", "--git-dir")
	return err == nil
}

// GetRepoRoot finds the git repository root from the given directory
func GetRepoRoot(startPath string) (string, error) {
	output, err := runGit(startPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", errors.New(
			errors.NotFound,
			"not a git repository",
			err,
		)
	}

	return strings.TrimSpace(string(output)), nil
}

// ChangedSince lists paths recorded by git as changed between the given
// commit and the current working tree, NUL-separated name-status output.
// It includes uncommitted (staged and unstaged) changes.
func ChangedSince(projectRoot, commit string) ([]byte, error) {
	return runGit(projectRoot, "diff", "--name-status", "-z", "--no-renames", commit)
}

// UntrackedFiles lists untracked, non-ignored paths NUL-separated.
func UntrackedFiles(projectRoot string) ([]byte, error) {
	return runGit(projectRoot, "ls-files", "--others", "--exclude-standard", "-z")
}

func runGit(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.Output()
}
