// Package watcher polls a project's git metadata for activity and
// fires a debounced callback, driving watch-mode refreshes.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"projmap/internal/errors"
	"projmap/internal/logging"
	"projmap/internal/repostate"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultDebounce     = 3 * time.Second
)

// Options tunes the poll loop.
type Options struct {
	// PollInterval is how often the git metadata is checked.
	PollInterval time.Duration
	// Debounce is the quiet period required after the last detected
	// change before the callback fires.
	Debounce time.Duration
}

// DefaultOptions returns the standard poll and debounce intervals.
func DefaultOptions() Options {
	return Options{
		PollInterval: DefaultPollInterval,
		Debounce:     DefaultDebounce,
	}
}

// Watcher polls one project's .git directory for HEAD and index
// changes. Polling two files is cheap and behaves the same on every
// platform, so no filesystem notification API is involved.
type Watcher struct {
	root     string
	gitDir   string
	opts     Options
	onChange func()
	logger   *logging.Logger

	debouncer *Debouncer

	lastHead  string
	lastIndex time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a watcher for the project rooted at root. onChange runs
// after git activity settles for the debounce period.
func New(root string, opts Options, logger *logging.Logger, onChange func()) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{
		root:      root,
		gitDir:    filepath.Join(root, ".git"),
		opts:      opts,
		onChange:  onChange,
		logger:    logger,
		debouncer: NewDebouncer(opts.Debounce),
	}
}

// Start begins polling in a background goroutine. The project must be
// inside a git checkout; without one there is no cheap signal to poll.
// A project nested in a larger repository watches the enclosing
// repository's metadata. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() error {
	gitDir := w.gitDir
	if repoRoot, err := repostate.GetRepoRoot(w.root); err == nil {
		gitDir = filepath.Join(repoRoot, ".git")
	} else if _, statErr := os.Stat(gitDir); statErr != nil {
		return errors.New(errors.NotFound,
			fmt.Sprintf("%s is not inside a git repository; watch mode needs one", w.root), statErr)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		return nil
	}

	w.gitDir = gitDir
	w.lastHead = readHead(gitDir)
	w.lastIndex = indexModTime(gitDir)
	w.stopCh = make(chan struct{})

	w.wg.Add(1)
	go w.loop(w.stopCh)

	w.logger.Info("watching project", map[string]interface{}{
		"root":     w.root,
		"interval": w.opts.PollInterval.String(),
	})
	return nil
}

// Stop halts polling and discards any pending callback. Safe to call
// on a watcher that never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopCh == nil {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.stopCh = nil
	w.mu.Unlock()

	w.wg.Wait()
	w.debouncer.Cancel()
	w.logger.Info("watcher stopped", nil)
}

func (w *Watcher) loop(stopCh chan struct{}) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if w.check() {
				w.debouncer.Trigger(w.onChange)
			}
		case <-stopCh:
			return
		}
	}
}

// check compares the current HEAD content and index mtime against the
// last observation and reports whether either moved.
func (w *Watcher) check() bool {
	changed := false

	head := readHead(w.gitDir)
	if head != "" && head != w.lastHead {
		w.logger.Debug("HEAD changed", map[string]interface{}{"head": head})
		w.lastHead = head
		changed = true
	}

	index := indexModTime(w.gitDir)
	if !index.IsZero() && index.After(w.lastIndex) {
		w.logger.Debug("index changed", map[string]interface{}{
			"mtime": index.Format(time.RFC3339),
		})
		w.lastIndex = index
		changed = true
	}

	return changed
}

// readHead returns the HEAD reference content, or empty when
// unreadable. Covers both branch switches and new commits: a symbolic
// HEAD changes on checkout, a detached one on commit.
func readHead(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// indexModTime returns the git index mtime, which moves on staging.
func indexModTime(gitDir string) time.Time {
	info, err := os.Stat(filepath.Join(gitDir, "index"))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
