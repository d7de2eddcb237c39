package refresh

import (
	"bytes"
	"sort"

	"projmap/internal/repostate"
	"projmap/internal/scanner"
	"projmap/internal/state"
)

// ChangeKind classifies how a path changed since the last refresh.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is one path to patch during an incremental refresh.
type Change struct {
	Path string
	Kind ChangeKind
}

// detectChanges finds paths changed since the last recorded refresh,
// via git when a last commit is on record, falling back to a
// fingerprint comparison against the state database.
func (r *Refresher) detectChanges(db *state.DB, sc *scanner.Scanner) ([]Change, error) {
	if repostate.IsGitRepository(r.info.Root) {
		if last := db.LastCommit(); last != "" {
			changes, err := r.gitChanges(last)
			if err == nil {
				return changes, nil
			}
			r.logger.Debug("git change detection failed, comparing fingerprints", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return r.stateChanges(db, sc)
}

// gitChanges combines the diff against the last refreshed commit,
// which already covers staged and unstaged edits, with untracked
// files. Later entries win on duplicate paths.
func (r *Refresher) gitChanges(lastCommit string) ([]Change, error) {
	diff, err := repostate.ChangedSince(r.info.Root, lastCommit)
	if err != nil {
		return nil, err
	}
	changes := parseNameStatus(diff)

	untracked, err := repostate.UntrackedFiles(r.info.Root)
	if err != nil {
		return nil, err
	}
	for _, path := range bytes.Split(untracked, []byte{0}) {
		if len(path) > 0 {
			changes = append(changes, Change{Path: string(path), Kind: ChangeAdded})
		}
	}
	return dedupe(changes), nil
}

// parseNameStatus decodes `git diff --name-status -z` output. The diff
// runs with --no-renames, so every entry is a status followed by a
// single path.
func parseNameStatus(out []byte) []Change {
	parts := bytes.Split(out, []byte{0})

	var changes []Change
	for i := 0; i+1 < len(parts); i += 2 {
		status, path := string(parts[i]), string(parts[i+1])
		if status == "" || path == "" {
			continue
		}
		kind := ChangeModified
		switch status[0] {
		case 'A':
			kind = ChangeAdded
		case 'D':
			kind = ChangeDeleted
		}
		changes = append(changes, Change{Path: path, Kind: kind})
	}
	return changes
}

// dedupe keeps the last entry per path, preserving first-seen order.
func dedupe(changes []Change) []Change {
	index := make(map[string]int, len(changes))
	var out []Change
	for _, c := range changes {
		if i, ok := index[c.Path]; ok {
			out[i] = c
			continue
		}
		index[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}

// stateChanges diffs a quick scan of the tree against the fingerprints
// recorded by the last refresh. A size and mtime match short-circuits
// the content hash.
func (r *Refresher) stateChanges(db *state.DB, sc *scanner.Scanner) ([]Change, error) {
	recorded, err := db.AllFiles()
	if err != nil {
		return nil, err
	}
	quick, err := sc.QuickScan()
	if err != nil {
		return nil, err
	}

	var changes []Change
	seen := make(map[string]bool, len(quick.Files))
	for _, rec := range quick.Files {
		seen[rec.RelPath] = true
		prev, ok := recorded[rec.RelPath]
		if !ok {
			changes = append(changes, Change{Path: rec.RelPath, Kind: ChangeAdded})
			continue
		}
		if prev.Size == rec.Size && prev.Mtime == rec.ModTime.Unix() {
			continue
		}
		if hash, hashErr := state.HashFile(rec.Path); hashErr != nil || hash != prev.Hash {
			changes = append(changes, Change{Path: rec.RelPath, Kind: ChangeModified})
		}
	}
	for path := range recorded {
		if !seen[path] {
			changes = append(changes, Change{Path: path, Kind: ChangeDeleted})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
