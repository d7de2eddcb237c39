// Package maps builds the structured map documents persisted for a
// project: the files map, the dependency map (forward and reverse
// edges), the components map and the modules map. Every builder works
// from the records of one scan, so a patched record set regenerates the
// same shapes a full scan would.
package maps

import (
	"encoding/json"
	"fmt"

	"projmap/internal/logging"
	"projmap/internal/scanner"
)

// Map names as stored in a snapshot's Maps field and on disk.
const (
	MapFiles        = "files"
	MapDependencies = "dependencies"
	MapComponents   = "components"
	MapModules      = "modules"
)

// Names lists every map the generator produces, in build order.
var Names = []string{MapFiles, MapDependencies, MapComponents, MapModules}

// FileEntry is one files-map value, keyed by the file's relative path.
type FileEntry struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Size      int64  `json:"size"`
	Lines     int    `json:"lines,omitempty"`
	GitStatus string `json:"gitStatus,omitempty"`
}

// Generator derives map documents from scan records.
type Generator struct {
	root   string
	logger *logging.Logger
}

// NewGenerator creates a generator for the project rooted at root.
// A nil logger disables logging.
func NewGenerator(root string, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Generator{root: root, logger: logger}
}

// Build produces every map from the given scan result, marshaled and
// keyed by map name, ready for the map store.
func (g *Generator) Build(res *scanner.Result) (map[string]json.RawMessage, error) {
	sections := map[string]interface{}{
		MapFiles:        g.Files(res.Files),
		MapDependencies: g.Dependencies(res.Files),
		MapComponents:   g.Components(res.Files),
		MapModules:      g.Modules(res.Files),
	}

	out := make(map[string]json.RawMessage, len(sections))
	for name, section := range sections {
		raw, err := json.Marshal(section)
		if err != nil {
			return nil, fmt.Errorf("encoding %s map: %w", name, err)
		}
		out[name] = raw
	}

	g.logger.Debug("maps generated", map[string]interface{}{
		"root":  g.root,
		"files": res.Stats.TotalFiles,
	})
	return out, nil
}

// Files projects scan records into the files map, keyed by relative path.
func (g *Generator) Files(records []scanner.FileRecord) map[string]FileEntry {
	entries := make(map[string]FileEntry, len(records))
	for _, rec := range records {
		entries[rec.RelPath] = FileEntry{
			Type:      rec.Type,
			Role:      rec.Role,
			Size:      rec.Size,
			Lines:     rec.Lines,
			GitStatus: rec.GitStatus,
		}
	}
	return entries
}
