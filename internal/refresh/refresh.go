// Package refresh decides between and runs full and incremental map
// regeneration for a project. A full run rescans the tree from scratch;
// an incremental run patches the stored file records for the paths that
// changed and rebuilds the derived maps from the patched set.
package refresh

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"projmap/internal/config"
	"projmap/internal/errors"
	"projmap/internal/lock"
	"projmap/internal/logging"
	"projmap/internal/maps"
	"projmap/internal/mapstore"
	"projmap/internal/paths"
	"projmap/internal/project"
	"projmap/internal/repostate"
	"projmap/internal/scanner"
	"projmap/internal/staleness"
	"projmap/internal/state"
)

// Mode selects how a refresh run chooses its work.
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// Action is what a run actually did.
type Action string

const (
	ActionFull        Action = "full"
	ActionIncremental Action = "incremental"
	ActionNone        Action = "none"
)

// Metadata keys recorded on every saved map set.
const (
	MetaReason    = "reason"
	MetaGitCommit = "gitCommit"
	MetaScanID    = "scanId"
	MetaFileCount = "fileCount"
)

const (
	mapsLock = "maps"

	// escalatePercent turns an incremental run into a full one when
	// more than this share of known files changed.
	escalatePercent = 50
)

// Result reports what a refresh run did.
type Result struct {
	Action     Action `json:"action"`
	Reason     string `json:"reason"`
	Score      int    `json:"score,omitempty"`
	ScanID     string `json:"scanId,omitempty"`
	Files      int    `json:"files,omitempty"`
	Changed    int    `json:"changed,omitempty"`
	HistoryID  string `json:"historyId,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Refresher orchestrates scanning, map generation, persistence and
// scan-state bookkeeping for one project.
type Refresher struct {
	info     *project.Info
	resolver *config.Resolver
	current  *mapstore.CurrentStore
	history  *mapstore.HistoryStore
	locks    *lock.Manager
	checker  *staleness.Checker
	logger   *logging.Logger
}

func New(info *project.Info, resolver *config.Resolver, logger *logging.Logger) *Refresher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Refresher{
		info:     info,
		resolver: resolver,
		current:  mapstore.NewCurrentStore(info, resolver.Config, logger),
		history:  mapstore.NewHistoryStore(info, resolver.Config, logger),
		locks:    lock.NewManager(info.LocksDir, logger),
		checker:  staleness.NewChecker(logger),
		logger:   logger,
	}
}

// Run executes one refresh in the given mode. Auto consults the
// staleness score: critical runs a full refresh, moderate an
// incremental one, anything less does nothing. Every mutation of the
// stored maps and scan state happens under the maps lock.
func (r *Refresher) Run(mode Mode) (*Result, error) {
	start := time.Now()

	action, reason, score, err := r.decide(mode)
	if err != nil {
		return nil, err
	}
	if action == ActionNone {
		return &Result{
			Action:     ActionNone,
			Reason:     reason,
			Score:      score,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	if err := r.info.EnsureDirs(); err != nil {
		return nil, errors.New(errors.IOFailure, "cannot create project state directories", err)
	}

	var out *Result
	err = r.locks.WithLock(mapsLock, lock.DefaultOptions(), func() error {
		db, dbErr := state.Open(r.info.StatePath, r.logger)
		if dbErr != nil {
			return dbErr
		}
		defer db.Close()

		var runErr error
		switch action {
		case ActionFull:
			out, runErr = r.runFull(db, reason)
		default:
			out, runErr = r.runIncremental(db, reason)
		}
		return runErr
	})
	if err != nil {
		return nil, err
	}
	out.Score = score
	out.DurationMs = time.Since(start).Milliseconds()
	return out, nil
}

// decide resolves the requested mode into an action. Only auto mode
// consults the staleness checker; explicit modes run unconditionally.
func (r *Refresher) decide(mode Mode) (Action, string, int, error) {
	switch mode {
	case ModeFull:
		return ActionFull, "full refresh requested", 0, nil
	case ModeIncremental:
		return ActionIncremental, "incremental refresh requested", 0, nil
	case ModeAuto, "":
	default:
		return ActionNone, "", 0, errors.New(errors.InvalidFormat,
			fmt.Sprintf("unknown refresh mode %q", mode), nil)
	}

	snap, err := r.current.Load()
	if err != nil {
		if errors.IsNotFound(err) {
			return ActionNone, "", 0, errors.New(errors.NotFound,
				"no maps exist yet; run projmap refresh --full", err)
		}
		return ActionNone, "", 0, err
	}

	res := r.checker.Check(r.info.Root, StoredFacts(snap))
	reason := fmt.Sprintf("staleness score %d (%s)", res.Score, res.Level)
	switch {
	case res.Score >= staleness.CriticalScore:
		return ActionFull, reason, res.Score, nil
	case res.Score >= staleness.ModerateScore:
		return ActionIncremental, reason, res.Score, nil
	default:
		return ActionNone, reason, res.Score, nil
	}
}

// StoredFacts extracts the staleness inputs a refresh recorded in a
// snapshot's metadata.
func StoredFacts(snap *mapstore.Snapshot) staleness.Stored {
	stored := staleness.Stored{GeneratedAt: snap.CreatedAt}
	if snap.Metadata == nil {
		return stored
	}
	stored.GitCommit = snap.Metadata[MetaGitCommit]
	if n, err := strconv.Atoi(snap.Metadata[MetaFileCount]); err == nil {
		stored.FileCount = n
	}
	return stored
}

func (r *Refresher) runFull(db *state.DB, reason string) (*Result, error) {
	sc := scanner.New(r.info.Root, r.resolver, nil, r.logger)
	res, err := sc.Scan()
	if err != nil {
		return nil, err
	}

	built, err := maps.NewGenerator(r.info.Root, r.logger).Build(res)
	if err != nil {
		return nil, err
	}

	commit := r.headCommit()
	historyID, err := r.persist(built, metadata("full-refresh", commit, res))
	if err != nil {
		return nil, err
	}

	if err := db.ReplaceAll(fingerprints(res.Files)); err != nil {
		return nil, err
	}
	if err := db.MarkFull(commit, res.ScanID, len(res.Files)); err != nil {
		return nil, err
	}

	r.logger.Info("full refresh complete", map[string]interface{}{
		"files":     len(res.Files),
		"historyId": historyID,
	})
	return &Result{
		Action:    ActionFull,
		Reason:    reason,
		ScanID:    res.ScanID,
		Files:     len(res.Files),
		HistoryID: historyID,
	}, nil
}

func (r *Refresher) runIncremental(db *state.DB, reason string) (*Result, error) {
	snap, err := r.current.Load()
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.NotFound,
				"no maps exist yet; run projmap refresh --full", err)
		}
		return nil, err
	}
	if !db.HasState() {
		r.logger.Info("no scan state recorded, running a full refresh", nil)
		return r.runFull(db, "no scan state recorded")
	}
	records, err := recordsFromSnapshot(r.info.Root, snap)
	if err != nil {
		return nil, err
	}

	sc := scanner.New(r.info.Root, r.resolver, nil, r.logger)
	changes, err := r.detectChanges(db, sc)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return &Result{Action: ActionNone, Reason: "no changes detected", Files: len(records)}, nil
	}

	if known := db.FileCount(); known > 0 && len(changes)*100 > known*escalatePercent {
		r.logger.Info("escalating to a full refresh", map[string]interface{}{
			"changed": len(changes),
			"known":   known,
		})
		return r.runFull(db, fmt.Sprintf("%d of %d known files changed", len(changes), known))
	}

	applied := r.patch(db, sc, records, changes)
	if applied == 0 {
		return &Result{Action: ActionNone, Reason: "no scanned files affected", Files: len(records)}, nil
	}

	res := scanner.NewResult(r.info.Root, sortedRecords(records))
	built, err := maps.NewGenerator(r.info.Root, r.logger).Build(res)
	if err != nil {
		return nil, err
	}

	commit := r.headCommit()
	historyID, err := r.persist(built, metadata("incremental", commit, res))
	if err != nil {
		return nil, err
	}
	if err := db.MarkIncremental(commit, len(res.Files)); err != nil {
		return nil, err
	}

	r.logger.Info("incremental refresh complete", map[string]interface{}{
		"changed":   applied,
		"files":     len(res.Files),
		"historyId": historyID,
	})
	return &Result{
		Action:    ActionIncremental,
		Reason:    reason,
		ScanID:    res.ScanID,
		Files:     len(res.Files),
		Changed:   applied,
		HistoryID: historyID,
	}, nil
}

// patch applies each change to the record set and the state database.
// Paths the scanner now rejects are dropped from the maps; other
// per-file failures are logged and skipped. Returns how many records
// actually changed.
func (r *Refresher) patch(db *state.DB, sc *scanner.Scanner, records map[string]scanner.FileRecord, changes []Change) int {
	applied := 0
	drop := func(rel string) {
		if _, ok := records[rel]; ok {
			delete(records, rel)
			applied++
		}
		if err := db.DeleteFile(rel); err != nil {
			r.logger.Warn("could not drop file state", map[string]interface{}{
				"path":  rel,
				"error": err.Error(),
			})
		}
	}

	for _, change := range changes {
		if change.Kind == ChangeDeleted {
			drop(change.Path)
			continue
		}

		rec, err := sc.ScanSingleFile(change.Path)
		if err != nil {
			if stderrors.Is(err, scanner.ErrExcluded) || errors.IsNotFound(err) {
				drop(change.Path)
				continue
			}
			r.logger.Warn("skipping unreadable changed file", map[string]interface{}{
				"path":  change.Path,
				"error": err.Error(),
			})
			continue
		}

		records[rec.RelPath] = *rec
		applied++

		hash, _ := state.HashFile(rec.Path)
		err = db.PutFile(&state.FileState{
			Path:      rec.RelPath,
			Hash:      hash,
			Size:      rec.Size,
			Mtime:     rec.ModTime.Unix(),
			ScannedAt: time.Now(),
		})
		if err != nil {
			r.logger.Warn("could not record file state", map[string]interface{}{
				"path":  rec.RelPath,
				"error": err.Error(),
			})
		}
	}
	return applied
}

// persist writes the map set as the current generation, then appends a
// history entry and prunes history to the configured retention. History
// failures are logged, not fatal.
func (r *Refresher) persist(built map[string]json.RawMessage, meta map[string]string) (string, error) {
	if _, err := r.current.Save(built, meta); err != nil {
		return "", err
	}

	snap, err := r.history.Save(built, meta)
	if err != nil {
		r.logger.Warn("could not record history entry", map[string]interface{}{
			"error": err.Error(),
		})
		return "", nil
	}
	if _, err := r.history.Prune(r.resolver.Config.History.Keep); err != nil {
		r.logger.Warn("history pruning failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return snap.ID, nil
}

// headCommit returns the current HEAD, or empty outside a repository.
func (r *Refresher) headCommit() string {
	if !repostate.IsGitRepository(r.info.Root) {
		return ""
	}
	commit, err := repostate.HeadCommit(r.info.Root)
	if err != nil {
		return ""
	}
	return commit
}

func metadata(reason, commit string, res *scanner.Result) map[string]string {
	meta := map[string]string{
		MetaReason:    reason,
		MetaScanID:    res.ScanID,
		MetaFileCount: strconv.Itoa(len(res.Files)),
	}
	if commit != "" {
		meta[MetaGitCommit] = commit
	}
	return meta
}

// fingerprints derives state rows from scan records. A file that cannot
// be hashed is recorded with an empty hash and resurfaces as modified
// on the next comparison.
func fingerprints(records []scanner.FileRecord) []state.FileState {
	now := time.Now()
	states := make([]state.FileState, 0, len(records))
	for _, rec := range records {
		hash, _ := state.HashFile(rec.Path)
		states = append(states, state.FileState{
			Path:      rec.RelPath,
			Hash:      hash,
			Size:      rec.Size,
			Mtime:     rec.ModTime.Unix(),
			ScannedAt: now,
		})
	}
	return states
}

// recordsFromSnapshot rebuilds scan records from the stored files map,
// keyed by relative path. Modification times are not persisted and stay
// zero; no map generator reads them.
func recordsFromSnapshot(root string, snap *mapstore.Snapshot) (map[string]scanner.FileRecord, error) {
	raw, ok := snap.Maps[maps.MapFiles]
	if !ok {
		return nil, errors.New(errors.InvalidFormat, "current maps have no files section", nil)
	}
	var entries map[string]maps.FileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errors.New(errors.InvalidFormat, "current files map is not readable", err)
	}

	records := make(map[string]scanner.FileRecord, len(entries))
	for rel, entry := range entries {
		name := path.Base(rel)
		records[rel] = scanner.FileRecord{
			Path:      paths.JoinProject(root, rel),
			RelPath:   rel,
			Name:      name,
			Ext:       strings.ToLower(path.Ext(name)),
			Type:      entry.Type,
			Role:      entry.Role,
			Size:      entry.Size,
			Lines:     entry.Lines,
			GitStatus: entry.GitStatus,
		}
	}
	return records, nil
}

func sortedRecords(records map[string]scanner.FileRecord) []scanner.FileRecord {
	out := make([]scanner.FileRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}
