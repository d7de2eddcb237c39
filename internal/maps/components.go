package maps

import (
	"path"
	"sort"
	"strings"

	"projmap/internal/config"
	"projmap/internal/scanner"
)

// ComponentEntry is one components-map value, keyed by the directory's
// relative path. Score is the sum of the heuristic signals that made
// the directory count as an architectural unit.
type ComponentEntry struct {
	Name     string  `json:"name"`
	Files    int     `json:"files"`
	Lines    int     `json:"lines"`
	Language string  `json:"language,omitempty"`
	Score    float64 `json:"score"`
	HasIndex bool    `json:"hasIndex"`
	Semantic bool    `json:"semantic"`
}

// minComponentScore is the qualification threshold for a directory.
const minComponentScore = 2.0

// componentIndexNames are files that mark a directory as a deliberate
// unit with a public surface.
var componentIndexNames = map[string]bool{
	"index.ts": true, "index.tsx": true, "index.js": true, "index.jsx": true,
	"index.mjs": true, "mod.rs": true, "lib.rs": true, "__init__.py": true,
}

// semanticDirNames are directory names that carry architectural meaning
// on their own.
var semanticDirNames = map[string]bool{
	"src": true, "lib": true, "app": true, "web": true, "api": true,
	"core": true, "common": true, "shared": true,

	"components": true, "hooks": true, "utils": true, "helpers": true,
	"services": true, "models": true, "controllers": true, "views": true,
	"pages": true, "routes": true, "middleware": true, "handlers": true,
	"providers": true, "stores": true,

	"config": true, "configs": true, "settings": true,
	"types": true, "interfaces": true, "schemas": true,
	"database": true, "db": true, "migrations": true,

	"tests": true, "test": true, "__tests__": true, "spec": true,

	"internal": true, "pkg": true, "cmd": true,

	"assets": true, "public": true, "static": true, "templates": true,

	"features": true, "modules": true, "domains": true,
	"entities": true, "repositories": true, "usecases": true,
}

// Components scores every directory that directly holds scanned files
// and keeps the ones that qualify as architectural units. Nested
// qualifiers without signals of their own fold into their parent.
func (g *Generator) Components(records []scanner.FileRecord) map[string]ComponentEntry {
	grouped := make(map[string][]scanner.FileRecord)
	for _, rec := range records {
		dir := path.Dir(rec.RelPath)
		if dir == "." {
			continue
		}
		grouped[dir] = append(grouped[dir], rec)
	}

	entries := make(map[string]ComponentEntry, len(grouped))
	for dir, recs := range grouped {
		entry := scoreComponent(dir, recs)
		if entry.Score >= minComponentScore {
			entries[dir] = entry
		}
	}
	return pruneNested(entries)
}

// scoreComponent totals the signals for one directory: an index file,
// three or more files, a semantic name, a dominant language, and a
// top-level position.
func scoreComponent(dir string, recs []scanner.FileRecord) ComponentEntry {
	entry := ComponentEntry{Name: path.Base(dir)}

	langCounts := make(map[string]int)
	for _, rec := range recs {
		entry.Files++
		entry.Lines += rec.Lines
		if componentIndexNames[strings.ToLower(rec.Name)] {
			entry.HasIndex = true
		}
		if rec.Role == string(config.RoleSource) || rec.Role == string(config.RoleTest) {
			langCounts[rec.Type]++
		}
	}
	entry.Language = dominantLanguage(langCounts)
	entry.Semantic = semanticDirNames[strings.ToLower(entry.Name)]

	if entry.HasIndex {
		entry.Score += 3
	}
	if entry.Files >= 3 {
		entry.Score += 2
	}
	if entry.Semantic {
		entry.Score += 2
	}
	if entry.Language != "" {
		entry.Score++
	}
	if !strings.Contains(dir, "/") {
		entry.Score++
	}
	return entry
}

// dominantLanguage picks the most common language; ties break to the
// lexically smallest name so repeated runs agree.
func dominantLanguage(counts map[string]int) string {
	langs := make([]string, 0, len(counts))
	for lang := range counts {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	best := ""
	bestCount := 0
	for _, lang := range langs {
		if counts[lang] > bestCount {
			best = lang
			bestCount = counts[lang]
		}
	}
	return best
}

// pruneNested drops a qualified directory whose parent also qualified,
// unless it has an index file or is a semantic name with enough files.
func pruneNested(entries map[string]ComponentEntry) map[string]ComponentEntry {
	kept := make(map[string]ComponentEntry, len(entries))
	for dir, entry := range entries {
		if hasQualifiedParent(dir, entries) && !entry.HasIndex && !(entry.Semantic && entry.Files >= 3) {
			continue
		}
		kept[dir] = entry
	}
	return kept
}

func hasQualifiedParent(dir string, entries map[string]ComponentEntry) bool {
	for parent := path.Dir(dir); parent != "."; parent = path.Dir(parent) {
		if _, ok := entries[parent]; ok {
			return true
		}
	}
	return false
}
