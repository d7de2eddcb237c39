package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"projmap/internal/errors"
	"projmap/internal/logging"
)

// gitFixture lays out a bare-bones .git directory: enough for the
// watcher, which only reads HEAD and stats the index.
func gitFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	if err := os.Mkdir(gitDir, 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	writeGitFile(t, gitDir, "HEAD", "ref: refs/heads/main\n")
	writeGitFile(t, gitDir, "index", "stub index")
	return root
}

func writeGitFile(t *testing.T, gitDir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(gitDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestStartRequiresGitRepository(t *testing.T) {
	w := New(t.TempDir(), DefaultOptions(), logging.Nop(), func() {})

	err := w.Start()
	if !errors.IsNotFound(err) {
		t.Errorf("Start = %v, want not-found", err)
	}
}

func TestCheckDetectsHeadChange(t *testing.T) {
	root := gitFixture(t)
	gitDir := filepath.Join(root, ".git")

	w := New(root, DefaultOptions(), logging.Nop(), func() {})
	w.lastHead = readHead(gitDir)
	w.lastIndex = indexModTime(gitDir)

	if w.check() {
		t.Error("check reported a change on an untouched repo")
	}

	writeGitFile(t, gitDir, "HEAD", "0123456789abcdef0123456789abcdef01234567\n")
	if !w.check() {
		t.Error("check missed a HEAD change")
	}
	if w.check() {
		t.Error("check reported the same HEAD change twice")
	}
}

func TestCheckDetectsIndexChange(t *testing.T) {
	root := gitFixture(t)
	gitDir := filepath.Join(root, ".git")

	w := New(root, DefaultOptions(), logging.Nop(), func() {})
	w.lastHead = readHead(gitDir)
	w.lastIndex = indexModTime(gitDir)

	later := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(filepath.Join(gitDir, "index"), later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if !w.check() {
		t.Error("check missed an index change")
	}
	if w.check() {
		t.Error("check reported the same index change twice")
	}
}

func TestCheckIgnoresUnreadableHead(t *testing.T) {
	root := gitFixture(t)
	gitDir := filepath.Join(root, ".git")

	w := New(root, DefaultOptions(), logging.Nop(), func() {})
	w.lastHead = readHead(gitDir)
	w.lastIndex = indexModTime(gitDir)

	if err := os.Remove(filepath.Join(gitDir, "HEAD")); err != nil {
		t.Fatalf("remove HEAD: %v", err)
	}
	if w.check() {
		t.Error("check treated a missing HEAD as a change")
	}
}

func TestWatcherFiresAfterHeadChange(t *testing.T) {
	root := gitFixture(t)
	gitDir := filepath.Join(root, ".git")

	fired := make(chan struct{}, 1)
	w := New(root, Options{PollInterval: 10 * time.Millisecond, Debounce: 10 * time.Millisecond},
		logging.Nop(), func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeGitFile(t, gitDir, "HEAD", "fedcba9876543210fedcba9876543210fedcba98\n")

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired after HEAD change")
	}
}

func TestWatcherStopPreventsCallback(t *testing.T) {
	root := gitFixture(t)
	gitDir := filepath.Join(root, ".git")

	var calls atomic.Int32
	w := New(root, Options{PollInterval: 10 * time.Millisecond, Debounce: time.Hour},
		logging.Nop(), func() { calls.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeGitFile(t, gitDir, "HEAD", "fedcba9876543210fedcba9876543210fedcba98\n")
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("callback ran %d times after Stop", n)
	}
}

func TestStopWithoutStart(t *testing.T) {
	w := New(t.TempDir(), DefaultOptions(), logging.Nop(), func() {})
	w.Stop() // must not hang or panic
}

func TestStartTwice(t *testing.T) {
	root := gitFixture(t)
	w := New(root, Options{PollInterval: 10 * time.Millisecond, Debounce: 10 * time.Millisecond},
		logging.Nop(), func() {})

	if err := w.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Errorf("second Start: %v", err)
	}
	w.Stop()
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20 * time.Millisecond)

	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("burst ran callback %d times, want 1", n)
	}
}

func TestDebouncerCancel(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20 * time.Millisecond)

	d.Trigger(func() { calls.Add(1) })
	d.Cancel()

	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("cancelled callback still ran %d times", n)
	}
}

func TestDebouncerFlush(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Hour)

	d.Trigger(func() { calls.Add(1) })
	d.Flush()

	if n := calls.Load(); n != 1 {
		t.Errorf("flush ran callback %d times, want 1", n)
	}

	d.Flush() // nothing pending
	if n := calls.Load(); n != 1 {
		t.Errorf("second flush reran callback, total %d", n)
	}
}
