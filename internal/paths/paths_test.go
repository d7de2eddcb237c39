package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "subdir", "test.go")
	if err := os.MkdirAll(filepath.Dir(testFile), 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	if err := os.WriteFile(testFile, []byte("package test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	canonical, err := Canonicalize(testFile, tempDir)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}

	if canonical != "subdir/test.go" {
		t.Errorf("expected subdir/test.go, got %s", canonical)
	}
}

func TestCanonicalizeMissingFile(t *testing.T) {
	tempDir := t.TempDir()

	// Nonexistent files should still canonicalize from the raw path
	canonical, err := Canonicalize(filepath.Join(tempDir, "not", "yet.go"), tempDir)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if canonical != "not/yet.go" {
		t.Errorf("expected not/yet.go, got %s", canonical)
	}
}

func TestIsWithinProject(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "subdir", "test.go")
	if err := os.MkdirAll(filepath.Dir(testFile), 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	if err := os.WriteFile(testFile, []byte("package test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	if !IsWithinProject(testFile, tempDir) {
		t.Error("expected file to be within project")
	}

	outsideFile := filepath.Join(os.TempDir(), "outside.go")
	if IsWithinProject(outsideFile, tempDir) {
		t.Error("expected file outside project to return false")
	}
}

func TestNormalize(t *testing.T) {
	result := Normalize("path/to/file")
	if result != "path/to/file" {
		t.Errorf("Normalize(path/to/file): got %s", result)
	}

	// filepath.ToSlash only converts the OS-specific separator. On Unix,
	// backslashes are valid filename characters and stay untouched.
}

func TestResolveRoot(t *testing.T) {
	tempDir := t.TempDir()

	root1, err := ResolveRoot(tempDir)
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}

	// Trailing separators and dot segments must not change the result
	root2, err := ResolveRoot(tempDir + string(filepath.Separator))
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if root1 != root2 {
		t.Errorf("trailing separator changed result: %q != %q", root1, root2)
	}

	root3, err := ResolveRoot(filepath.Join(tempDir, "sub", ".."))
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if root1 != root3 {
		t.Errorf("dot segments changed result: %q != %q", root1, root3)
	}

	if !filepath.IsAbs(root1) {
		t.Errorf("expected absolute path, got %q", root1)
	}
}

func TestResolveRootSymlink(t *testing.T) {
	tempDir := t.TempDir()
	real := filepath.Join(tempDir, "real")
	if err := os.Mkdir(real, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	link := filepath.Join(tempDir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	rootReal, err := ResolveRoot(real)
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	rootLink, err := ResolveRoot(link)
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if rootReal != rootLink {
		t.Errorf("symlink should resolve to same root: %q != %q", rootReal, rootLink)
	}
}

func TestJoinProject(t *testing.T) {
	result := JoinProject("/project/root", "path/to/file.go")
	expected := filepath.Join("/project/root", "path", "to", "file.go")
	if result != expected {
		t.Errorf("JoinProject: expected %s, got %s", expected, result)
	}
}
