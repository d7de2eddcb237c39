package staleness

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

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

func initGitRepo(t *testing.T, dir string) {
	t.Helper()

	cmd := exec.Command("git", "init")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Skipf("git init failed: %v", err)
	}

	for _, args := range [][]string{
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
	} {
		c := exec.Command("git", args...)
		c.Dir = dir
		c.Run() //nolint:errcheck
	}
}

func commitAll(t *testing.T, dir, message string) string {
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

	headCmd := exec.Command("git", "rev-parse", "HEAD")
	headCmd.Dir = dir
	out, err := headCmd.Output()
	if err != nil {
		t.Fatalf("git rev-parse failed: %v", err)
	}
	return strings.TrimSpace(string(out))
}

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelFresh},
		{1, LevelMinor},
		{29, LevelMinor},
		{30, LevelModerate},
		{59, LevelModerate},
		{60, LevelCritical},
		{100, LevelCritical},
	}

	for _, tt := range tests {
		if got := levelFor(tt.score); got != tt.want {
			t.Errorf("levelFor(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestCommitPoints(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		current string
		want    int
	}{
		{"both unknown", "", "", 0},
		{"stored unknown", "", "abc123", 0},
		{"current unknown", "abc123", "", 0},
		{"same commit", "abc123", "abc123", 0},
		{"moved", "abc123", "def456", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commitPoints(tt.stored, tt.current); got != tt.want {
				t.Errorf("commitPoints(%q, %q) = %d, want %d", tt.stored, tt.current, got, tt.want)
			}
		})
	}
}

func TestFileDeltaPoints(t *testing.T) {
	tests := []struct {
		stored  int
		current int
		want    int
	}{
		{10, 10, 0},
		{10, 11, 3},
		{11, 10, 3},
		{10, 19, 27},
		{10, 20, 30},
		{10, 500, 30},
		{500, 10, 30},
	}

	for _, tt := range tests {
		if got := fileDeltaPoints(tt.stored, tt.current); got != tt.want {
			t.Errorf("fileDeltaPoints(%d, %d) = %d, want %d", tt.stored, tt.current, got, tt.want)
		}
	}
}

func TestAgePoints(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ago  time.Duration
		want int
	}{
		{"one hour", time.Hour, 0},
		{"six days", 6 * 24 * time.Hour, 0},
		{"exactly at grace", 7 * 24 * time.Hour, 0},
		{"quarter day past grace", 7*24*time.Hour + 6*time.Hour, 1},
		{"one day past grace", 8 * 24 * time.Hour, 4},
		{"three days past grace", 10 * 24 * time.Hour, 12},
		{"seven days past grace", 14 * 24 * time.Hour, 28},
		{"at the cap", 14*24*time.Hour + 12*time.Hour, 30},
		{"far past the cap", 90 * 24 * time.Hour, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agePoints(now.Add(-tt.ago), now); got != tt.want {
				t.Errorf("agePoints(now-%s) = %d, want %d", tt.ago, got, tt.want)
			}
		})
	}

	if got := agePoints(time.Time{}, now); got != 0 {
		t.Errorf("zero timestamp should score 0, got %d", got)
	}
	if got := agePoints(now.Add(time.Hour), now); got != 0 {
		t.Errorf("future timestamp should score 0, got %d", got)
	}
}

func TestCheckFreshProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package a")
	writeFile(t, dir, "b.go", "package b")
	writeFile(t, dir, "docs/readme.md", "# docs")

	result := NewChecker(nil).Check(dir, Stored{
		FileCount:   3,
		GeneratedAt: time.Now().Add(-time.Hour),
	})

	if result.Score != 0 {
		t.Errorf("Score = %d, want 0 (reasons: %v)", result.Score, result.Reasons)
	}
	if result.Level != LevelFresh {
		t.Errorf("Level = %q, want fresh", result.Level)
	}
	if result.IsStale {
		t.Error("fresh project should not be stale")
	}
	if len(result.Reasons) != 0 {
		t.Errorf("fresh project should have no reasons, got %v", result.Reasons)
	}
	if result.Current.GitRepo {
		t.Error("plain directory should not report a git repo")
	}
	if result.Current.FileCount != 3 {
		t.Errorf("Current.FileCount = %d, want 3", result.Current.FileCount)
	}
	if result.CheckedAt.IsZero() {
		t.Error("CheckedAt should be set")
	}
}

func TestCheckFileCountDrift(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go", "e.go"} {
		writeFile(t, dir, name, "package x")
	}

	result := NewChecker(nil).Check(dir, Stored{
		FileCount:   2,
		GeneratedAt: time.Now().Add(-time.Hour),
	})

	if result.Score != 9 {
		t.Errorf("Score = %d, want 9", result.Score)
	}
	if result.Level != LevelMinor {
		t.Errorf("Level = %q, want minor", result.Level)
	}
	if result.IsStale {
		t.Error("minor drift should not be stale")
	}
	if len(result.Reasons) != 1 {
		t.Fatalf("expected 1 reason, got %v", result.Reasons)
	}
	if !strings.Contains(result.Reasons[0], "file count changed from 2 to 5") {
		t.Errorf("unexpected reason: %q", result.Reasons[0])
	}
}

func TestCheckSignalsAdd(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		writeFile(t, dir, filepath.Join("src", string(rune('a'+i))+".go"), "package x")
	}

	result := NewChecker(nil).Check(dir, Stored{
		FileCount:   0,
		GeneratedAt: time.Now().Add(-20 * 24 * time.Hour),
	})

	// File delta and age both hit their caps of 30.
	if result.Score != 60 {
		t.Errorf("Score = %d, want 60 (reasons: %v)", result.Score, result.Reasons)
	}
	if result.Level != LevelCritical {
		t.Errorf("Level = %q, want critical", result.Level)
	}
	if !result.IsStale {
		t.Error("critical project should be stale")
	}
	if len(result.Reasons) != 2 {
		t.Errorf("expected 2 reasons, got %v", result.Reasons)
	}
}

func TestCheckGitCommitMismatch(t *testing.T) {
	dir := t.TempDir()
	initGitRepo(t, dir)
	writeFile(t, dir, "main.go", "package main")
	head := commitAll(t, dir, "initial")

	result := NewChecker(nil).Check(dir, Stored{
		GitCommit:   "0123456789abcdef0123456789abcdef01234567",
		FileCount:   1,
		GeneratedAt: time.Now().Add(-time.Hour),
	})

	if result.Score != 40 {
		t.Errorf("Score = %d, want 40 (reasons: %v)", result.Score, result.Reasons)
	}
	if result.Level != LevelModerate {
		t.Errorf("Level = %q, want moderate", result.Level)
	}
	if !result.IsStale {
		t.Error("moved HEAD should make the project stale")
	}
	if len(result.Reasons) != 1 || !strings.Contains(result.Reasons[0], "git HEAD moved") {
		t.Errorf("unexpected reasons: %v", result.Reasons)
	}
	if !result.Current.GitRepo {
		t.Error("Current.GitRepo should be true inside a repository")
	}
	if result.Current.GitCommit != head {
		t.Errorf("Current.GitCommit = %q, want %q", result.Current.GitCommit, head)
	}

	// Matching commit scores nothing.
	same := NewChecker(nil).Check(dir, Stored{
		GitCommit:   head,
		FileCount:   1,
		GeneratedAt: time.Now().Add(-time.Hour),
	})
	if same.Score != 0 {
		t.Errorf("matching commit Score = %d, want 0 (reasons: %v)", same.Score, same.Reasons)
	}
}

func TestWalkFileCountSkips(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main")
	writeFile(t, dir, "src/util.go", "package src")
	writeFile(t, dir, "README.md", "# readme")
	writeFile(t, dir, "node_modules/pkg/index.js", "junk")
	writeFile(t, dir, ".git/config", "junk")
	writeFile(t, dir, "vendor/dep/dep.go", "junk")
	writeFile(t, dir, "dist/bundle.js", "junk")
	writeFile(t, dir, "build/out.bin", "junk")
	writeFile(t, dir, "target/debug/bin", "junk")
	writeFile(t, dir, ".projmap/state.db", "junk")

	if got := walkFileCount(dir); got != 3 {
		t.Errorf("walkFileCount = %d, want 3", got)
	}
}

func TestWalkFileCountRootNeverSkipped(t *testing.T) {
	root := filepath.Join(t.TempDir(), "build")
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "lib.go", "package main")

	if got := walkFileCount(root); got != 2 {
		t.Errorf("walkFileCount on a root named build = %d, want 2", got)
	}
}

func TestWalkFileCountMissingDir(t *testing.T) {
	if got := walkFileCount(filepath.Join(t.TempDir(), "nope")); got != 0 {
		t.Errorf("walkFileCount on missing dir = %d, want 0", got)
	}
}
