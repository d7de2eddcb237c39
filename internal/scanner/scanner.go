package scanner

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"projmap/internal/config"
	"projmap/internal/errors"
	"projmap/internal/gitstatus"
	"projmap/internal/logging"
	"projmap/internal/paths"
)

// ErrExcluded marks a single-file scan rejected by the include/exclude
// rules rather than by a filesystem problem.
var ErrExcluded = stderrors.New("file excluded by scan configuration")

// FileRecord describes one file found during a scan.
type FileRecord struct {
	Path      string    `json:"path"`
	RelPath   string    `json:"relPath"`
	Name      string    `json:"name"`
	Ext       string    `json:"ext"`
	Type      string    `json:"type"`
	Role      string    `json:"role"`
	Size      int64     `json:"size"`
	Lines     int       `json:"lines"`
	ModTime   time.Time `json:"modTime"`
	GitStatus string    `json:"gitStatus"`
}

// Stats aggregates counters over a scan's files. ByType and ByRole
// each sum to TotalFiles.
type Stats struct {
	TotalFiles int            `json:"totalFiles"`
	TotalSize  int64          `json:"totalSize"`
	TotalLines int            `json:"totalLines"`
	ByType     map[string]int `json:"byType"`
	ByRole     map[string]int `json:"byRole"`
	DurationMs int64          `json:"durationMs"`
}

func (st *Stats) add(rec FileRecord) {
	st.TotalFiles++
	st.TotalSize += rec.Size
	st.TotalLines += rec.Lines
	st.ByType[rec.Type]++
	st.ByRole[rec.Role]++
}

// Result is a complete scan of a project tree. Files appear in
// discovery order: lexical within a directory, parents before children.
type Result struct {
	ScanID string       `json:"scanId"`
	Root   string       `json:"root"`
	Files  []FileRecord `json:"files"`
	Stats  Stats        `json:"stats"`
}

// NewResult assembles a Result from already-derived records, for
// callers that patch a previous scan instead of walking the tree.
// Stats are recomputed from the records and a fresh ScanID assigned.
func NewResult(root string, files []FileRecord) *Result {
	res := &Result{
		ScanID: uuid.New().String(),
		Root:   root,
		Files:  files,
		Stats:  Stats{ByType: make(map[string]int), ByRole: make(map[string]int)},
	}
	for _, rec := range files {
		res.Stats.add(rec)
	}
	return res
}

// Scanner walks a project tree and produces FileRecords according to
// the resolver's include/exclude rules and limits.
type Scanner struct {
	root     string
	resolver *config.Resolver
	status   gitstatus.Provider
	logger   *logging.Logger
}

// New builds a scanner over root. A nil status provider is resolved on
// the first full scan, so quick scans never invoke git.
func New(root string, resolver *config.Resolver, status gitstatus.Provider, logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scanner{root: root, resolver: resolver, status: status, logger: logger}
}

// Scan walks the full tree with line counts and git status per file.
func (s *Scanner) Scan() (*Result, error) {
	if s.status == nil {
		s.status = gitstatus.NewProvider(s.root, s.logger)
	}
	return s.run(s.status, true)
}

// QuickScan walks the tree without line counts and without invoking
// git; records carry git status "unknown".
func (s *Scanner) QuickScan() (*Result, error) {
	return s.run(nil, false)
}

func (s *Scanner) run(status gitstatus.Provider, countLines bool) (*Result, error) {
	start := time.Now()
	if _, err := os.Stat(s.root); err != nil {
		return nil, errors.New(errors.NotFound, "project root not readable: "+s.root, err)
	}
	res := &Result{
		ScanID: uuid.New().String(),
		Root:   s.root,
		Stats:  Stats{ByType: make(map[string]int), ByRole: make(map[string]int)},
	}
	s.walk(s.root, 0, status, countLines, res)
	res.Stats.DurationMs = time.Since(start).Milliseconds()
	s.logger.Debug("scan complete", map[string]interface{}{
		"scanId":     res.ScanID,
		"files":      res.Stats.TotalFiles,
		"durationMs": res.Stats.DurationMs,
	})
	return res, nil
}

// walk descends one directory. depth is the directory's own depth below
// the project root (root itself is 0). Unreadable directories and
// entries that fail to stat are skipped without failing the scan.
func (s *Scanner) walk(dir string, depth int, status gitstatus.Provider, countLines bool, res *Result) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Debug("skipping unreadable directory", map[string]interface{}{
			"dir":   dir,
			"error": err.Error(),
		})
		return
	}
	cfg := s.resolver.Config.Scanner
	for _, entry := range entries {
		name := entry.Name()
		abs := filepath.Join(dir, name)
		rel, relErr := filepath.Rel(s.root, abs)
		if relErr != nil {
			continue
		}
		rel = filepath.ToSlash(rel)

		isDir := entry.IsDir()
		var info fs.FileInfo
		if entry.Type()&fs.ModeSymlink != 0 {
			if !cfg.FollowSymlinks {
				continue
			}
			target, statErr := os.Stat(abs)
			if statErr != nil {
				continue // dangling link
			}
			isDir = target.IsDir()
			info = target
		}

		if isDir {
			if s.resolver.IsExcludedDir(name) || s.resolver.ShouldExclude(rel) {
				continue
			}
			// Files inside the subdirectory would sit at depth+2.
			if depth+1 >= cfg.MaxDepth {
				continue
			}
			s.walk(abs, depth+1, status, countLines, res)
			continue
		}

		if !s.resolver.ShouldInclude(rel) {
			continue
		}
		if info == nil {
			info, err = entry.Info()
			if err != nil {
				continue
			}
		}
		if info.Size() > cfg.MaxFileSizeBytes {
			continue
		}
		rec := s.record(abs, rel, name, info, status, countLines)
		res.Files = append(res.Files, rec)
		res.Stats.add(rec)
	}
}

// ScanSingleFile re-derives the record for one project-relative path,
// for callers patching an existing map without a full walk. A missing
// file returns a NotFound error; a filtered one returns ErrExcluded.
func (s *Scanner) ScanSingleFile(rel string) (*FileRecord, error) {
	rel = paths.Normalize(rel)
	if !s.resolver.ShouldInclude(rel) {
		return nil, ErrExcluded
	}
	abs := paths.JoinProject(s.root, rel)
	if !paths.IsWithinProject(abs, s.root) {
		return nil, ErrExcluded
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.NotFound, "file not found: "+rel, err)
		}
		return nil, errors.New(errors.IOFailure, "cannot stat file: "+rel, err)
	}
	if info.IsDir() {
		return nil, ErrExcluded
	}
	if info.Size() > s.resolver.Config.Scanner.MaxFileSizeBytes {
		return nil, ErrExcluded
	}
	if s.status == nil {
		s.status = gitstatus.NewProvider(s.root, s.logger)
	}
	rec := s.record(abs, rel, info.Name(), info, s.status, true)
	return &rec, nil
}

func (s *Scanner) record(abs, rel, name string, info fs.FileInfo, status gitstatus.Provider, countLines bool) FileRecord {
	rec := FileRecord{
		Path:      abs,
		RelPath:   rel,
		Name:      name,
		Ext:       strings.ToLower(filepath.Ext(name)),
		Type:      config.FileType(name),
		Role:      string(config.FileRole(name)),
		Size:      info.Size(),
		ModTime:   info.ModTime().UTC(),
		GitStatus: string(gitstatus.Unknown),
	}
	if countLines && config.IsText(name) {
		rec.Lines = countFileLines(abs)
	}
	if status != nil {
		rec.GitStatus = string(status.Status(rel))
	}
	return rec
}

// countFileLines counts newline-terminated lines plus a trailing
// unterminated one. Unreadable files count as zero.
func countFileLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return 0
	}
	lines := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		lines++
	}
	return lines
}
