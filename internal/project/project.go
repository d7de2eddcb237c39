// Package project resolves a project path into its identity hash and
// the on-disk state layout under the projmap home.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"projmap/internal/paths"
)

const (
	// HomeEnvVar overrides the projmap state root
	HomeEnvVar = "PROJMAP_HOME"
	// DefaultHomeDir is the state root under the user home directory
	DefaultHomeDir = ".projmap"

	// MapsSubdir holds the current maps for a project
	MapsSubdir = "maps"
	// SnapshotsSubdir holds named snapshots, under the maps dir
	SnapshotsSubdir = "snapshots"
	// HistorySubdir holds timestamped history entries, under the maps dir
	HistorySubdir = "history"
	// LocksSubdir holds lock directories
	LocksSubdir = "locks"
	// StateFile is the scan state database file name
	StateFile = "state.db"
)

// Home returns the projmap state root, honoring PROJMAP_HOME.
func Home() (string, error) {
	if custom := os.Getenv(HomeEnvVar); custom != "" {
		return custom, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving user home: %w", err)
	}
	return filepath.Join(home, DefaultHomeDir), nil
}

// Hash derives the project identity from an already-normalized absolute
// root path. It is a pure function: equal inputs always produce equal
// hashes, and no filesystem state is consulted.
func Hash(normalizedRoot string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(normalizedRoot))
}

// Info bundles the resolved identity and state paths for one project.
type Info struct {
	Root         string // normalized absolute project root
	Hash         string // 16 hex chars derived from Root
	DataDir      string // <home>/<hash>
	MapsDir      string // <home>/<hash>/maps
	SnapshotsDir string // <home>/<hash>/maps/snapshots
	HistoryDir   string // <home>/<hash>/maps/history
	LocksDir     string // <home>/<hash>/locks
	StatePath    string // <home>/<hash>/state.db
}

// Resolve normalizes the given project path and derives its state layout.
// No directories are created; see EnsureDirs.
func Resolve(projectPath string) (*Info, error) {
	root, err := paths.ResolveRoot(projectPath)
	if err != nil {
		return nil, fmt.Errorf("normalizing project root: %w", err)
	}

	home, err := Home()
	if err != nil {
		return nil, err
	}

	hash := Hash(root)
	dataDir := filepath.Join(home, hash)
	mapsDir := filepath.Join(dataDir, MapsSubdir)

	return &Info{
		Root:         root,
		Hash:         hash,
		DataDir:      dataDir,
		MapsDir:      mapsDir,
		SnapshotsDir: filepath.Join(mapsDir, SnapshotsSubdir),
		HistoryDir:   filepath.Join(mapsDir, HistorySubdir),
		LocksDir:     filepath.Join(dataDir, LocksSubdir),
		StatePath:    filepath.Join(dataDir, StateFile),
	}, nil
}

// EnsureDirs creates the state directories for the project.
func (i *Info) EnsureDirs() error {
	for _, dir := range []string{i.MapsDir, i.SnapshotsDir, i.HistoryDir, i.LocksDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
