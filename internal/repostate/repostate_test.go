package repostate

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initGitRepo(t *testing.T, dir string) {
	t.Helper()

	cmd := exec.Command("git", "init")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Skipf("git init failed: %v", err)
	}

	configCmd := exec.Command("git", "config", "user.email", "test@test.com")
	configCmd.Dir = dir
	configCmd.Run() //nolint:errcheck

	configCmd2 := exec.Command("git", "config", "user.name", "Test")
	configCmd2.Dir = dir
	configCmd2.Run() //nolint:errcheck
}

func commitAll(t *testing.T, dir, message string) {
	t.Helper()

	addCmd := exec.Command("git", "add", ".")
	addCmd.Dir = dir
	if err := addCmd.Run(); err != nil {
		t.Fatalf("git add failed: %v", err)
	}

	commitCmd := exec.Command("git", "commit", "-m", message)
	commitCmd.Dir = dir
	if err := commitCmd.Run(); err != nil {
		t.Fatalf("git commit failed: %v", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestIsGitRepository(t *testing.T) {
	dir := t.TempDir()
	if IsGitRepository(dir) {
		t.Error("plain directory should not be a git repository")
	}

	initGitRepo(t, dir)
	if !IsGitRepository(dir) {
		t.Error("expected directory to be a git repository after init")
	}
}

func TestHeadCommit(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)

	// No commits yet: empty hash, no error
	head, err := HeadCommit(dir)
	if err != nil {
		t.Fatalf("HeadCommit on empty repo failed: %v", err)
	}
	if head != "" {
		t.Errorf("expected empty head for fresh repo, got %q", head)
	}

	writeFile(t, dir, "main.go", "package main")
	commitAll(t, dir, "initial")

	head, err = HeadCommit(dir)
	if err != nil {
		t.Fatalf("HeadCommit failed: %v", err)
	}
	if len(head) != 40 {
		t.Errorf("expected 40 char commit hash, got %q", head)
	}
}

func TestIsDirty(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "main.go", "package main")
	commitAll(t, dir, "initial")

	if IsDirty(dir) {
		t.Error("clean repo should not be dirty")
	}

	writeFile(t, dir, "main.go", "package main\n\nfunc main() {}")
	if !IsDirty(dir) {
		t.Error("modified repo should be dirty")
	}

	commitAll(t, dir, "change")
	if IsDirty(dir) {
		t.Error("repo should be clean after commit")
	}

	writeFile(t, dir, "extra.txt", "untracked")
	if !IsDirty(dir) {
		t.Error("untracked files should make the repo dirty")
	}
}

func TestTrackedFileCount(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)

	count, err := TrackedFileCount(dir)
	if err != nil {
		t.Fatalf("TrackedFileCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("fresh repo should track 0 files, got %d", count)
	}

	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "sub/b.go", "package sub")
	commitAll(t, dir, "two files")

	count, err = TrackedFileCount(dir)
	if err != nil {
		t.Fatalf("TrackedFileCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 tracked files, got %d", count)
	}
}

func TestGetRepoRoot(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "sub/deep/file.go", "package deep")

	root, err := GetRepoRoot(filepath.Join(dir, "sub", "deep"))
	if err != nil {
		t.Fatalf("GetRepoRoot failed: %v", err)
	}
	resolved, _ := filepath.EvalSymlinks(dir)
	if root != dir && root != resolved {
		t.Errorf("GetRepoRoot = %q, want %q", root, dir)
	}

	if _, err := GetRepoRoot(t.TempDir()); err == nil {
		t.Error("expected error for non-git directory")
	}
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "main.go", "package main")
	commitAll(t, dir, "initial")

	state, err := Compute(dir)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(state.HeadCommit) != 40 {
		t.Errorf("HeadCommit should be a full hash, got %q", state.HeadCommit)
	}
	if state.Dirty {
		t.Error("clean repo should not report dirty")
	}
	if state.TrackedFiles != 1 {
		t.Errorf("TrackedFiles = %d, want 1", state.TrackedFiles)
	}
	if state.ComputedAt == "" {
		t.Error("ComputedAt should be set")
	}
}

func TestChangedSince(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "a.go", "package a")
	commitAll(t, dir, "first")

	first, err := HeadCommit(dir)
	if err != nil {
		t.Fatalf("HeadCommit failed: %v", err)
	}

	writeFile(t, dir, "a.go", "package a // changed")
	writeFile(t, dir, "b.go", "package b")
	commitAll(t, dir, "second")

	out, err := ChangedSince(dir, first)
	if err != nil {
		t.Fatalf("ChangedSince failed: %v", err)
	}

	fields := bytes.Split(bytes.TrimSuffix(out, []byte{0}), []byte{0})
	// STATUS, PATH pairs
	if len(fields) != 4 {
		t.Fatalf("expected 4 NUL fields, got %d: %q", len(fields), out)
	}
	got := map[string]string{}
	for i := 0; i+1 < len(fields); i += 2 {
		got[string(fields[i+1])] = string(fields[i])
	}
	if got["a.go"] != "M" {
		t.Errorf("a.go status = %q, want M", got["a.go"])
	}
	if got["b.go"] != "A" {
		t.Errorf("b.go status = %q, want A", got["b.go"])
	}
}

func TestUntrackedFiles(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "tracked.go", "package main")
	commitAll(t, dir, "initial")
	writeFile(t, dir, "new.go", "package main")

	out, err := UntrackedFiles(dir)
	if err != nil {
		t.Fatalf("UntrackedFiles failed: %v", err)
	}
	if !bytes.Contains(out, []byte("new.go")) {
		t.Errorf("expected new.go in untracked list, got %q", out)
	}
	if bytes.Contains(out, []byte("tracked.go")) {
		t.Errorf("tracked.go should not be untracked: %q", out)
	}
}
