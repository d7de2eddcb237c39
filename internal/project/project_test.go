package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHome(t *testing.T) {
	originalEnv := os.Getenv(HomeEnvVar)
	t.Cleanup(func() { _ = os.Setenv(HomeEnvVar, originalEnv) })

	customHome := "/custom/projmap/home"
	_ = os.Setenv(HomeEnvVar, customHome)

	home, err := Home()
	if err != nil {
		t.Fatalf("Home failed: %v", err)
	}
	if home != customHome {
		t.Errorf("expected %s, got %s", customHome, home)
	}

	_ = os.Unsetenv(HomeEnvVar)

	home, err = Home()
	if err != nil {
		t.Fatalf("Home failed: %v", err)
	}
	if !strings.HasSuffix(home, DefaultHomeDir) {
		t.Errorf("expected path to end with %s, got %s", DefaultHomeDir, home)
	}
}

func TestHash(t *testing.T) {
	hash1 := Hash("/some/project/path")
	hash2 := Hash("/some/project/path")
	if hash1 != hash2 {
		t.Errorf("expected same hash for same path, got %s != %s", hash1, hash2)
	}

	hash3 := Hash("/different/project/path")
	if hash1 == hash3 {
		t.Errorf("expected different hash for different path, got %s == %s", hash1, hash3)
	}

	if len(hash1) != 16 { // 8 bytes = 16 hex chars
		t.Errorf("expected 16 character hash, got %d: %s", len(hash1), hash1)
	}
}

func TestResolve(t *testing.T) {
	tempHome := t.TempDir()
	originalEnv := os.Getenv(HomeEnvVar)
	_ = os.Setenv(HomeEnvVar, tempHome)
	t.Cleanup(func() { _ = os.Setenv(HomeEnvVar, originalEnv) })

	projectDir := t.TempDir()

	info, err := Resolve(projectDir)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if info.Root == "" || !filepath.IsAbs(info.Root) {
		t.Errorf("Root should be absolute, got %q", info.Root)
	}
	if info.Hash != Hash(info.Root) {
		t.Errorf("Hash should derive from normalized root")
	}
	if info.DataDir != filepath.Join(tempHome, info.Hash) {
		t.Errorf("DataDir = %q, want under %q", info.DataDir, tempHome)
	}
	if info.MapsDir != filepath.Join(info.DataDir, MapsSubdir) {
		t.Errorf("MapsDir = %q", info.MapsDir)
	}
	if !strings.HasPrefix(info.SnapshotsDir, info.MapsDir) {
		t.Errorf("SnapshotsDir should live under MapsDir, got %q", info.SnapshotsDir)
	}
	if !strings.HasPrefix(info.HistoryDir, info.MapsDir) {
		t.Errorf("HistoryDir should live under MapsDir, got %q", info.HistoryDir)
	}
	if !strings.HasSuffix(info.StatePath, StateFile) {
		t.Errorf("StatePath should end with %s, got %q", StateFile, info.StatePath)
	}
}

func TestResolveStableAcrossSpellings(t *testing.T) {
	tempHome := t.TempDir()
	originalEnv := os.Getenv(HomeEnvVar)
	_ = os.Setenv(HomeEnvVar, tempHome)
	t.Cleanup(func() { _ = os.Setenv(HomeEnvVar, originalEnv) })

	projectDir := t.TempDir()

	info1, err := Resolve(projectDir)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	info2, err := Resolve(projectDir + string(filepath.Separator))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if info1.Hash != info2.Hash {
		t.Errorf("different spellings of one root must hash alike: %s != %s", info1.Hash, info2.Hash)
	}
	if info1.DataDir != info2.DataDir {
		t.Errorf("DataDir differs: %s != %s", info1.DataDir, info2.DataDir)
	}
}

func TestEnsureDirs(t *testing.T) {
	tempHome := t.TempDir()
	originalEnv := os.Getenv(HomeEnvVar)
	_ = os.Setenv(HomeEnvVar, tempHome)
	t.Cleanup(func() { _ = os.Setenv(HomeEnvVar, originalEnv) })

	info, err := Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if err := info.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}

	for _, dir := range []string{info.MapsDir, info.SnapshotsDir, info.HistoryDir, info.LocksDir} {
		fi, err := os.Stat(dir)
		if err != nil {
			t.Errorf("directory %s was not created: %v", dir, err)
			continue
		}
		if !fi.IsDir() {
			t.Errorf("%s should be a directory", dir)
		}
	}
}
