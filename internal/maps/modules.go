package maps

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	btoml "github.com/BurntSushi/toml"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"

	"projmap/internal/config"
	"projmap/internal/scanner"
)

// DeclarationFile is the optional explicit module declaration file at
// the project root. When present and parseable it overrides detection.
const DeclarationFile = "MODULES.toml"

// How a module entry came to exist.
const (
	ModuleSourceDeclared   = "declared"
	ModuleSourceManifest   = "manifest"
	ModuleSourceConvention = "convention"
	ModuleSourceFallback   = "fallback"
)

// ModuleEntry is one modules-map value, keyed by the module root path
// relative to the project root ("." for the root itself).
type ModuleEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Manifest string   `json:"manifest,omitempty"`
	Language string   `json:"language"`
	Files    int      `json:"files"`
	Lines    int      `json:"lines"`
	Source   string   `json:"source"`
	Owner    string   `json:"owner,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

type moduleDeclaration struct {
	ID       string   `toml:"id"`
	Name     string   `toml:"name"`
	Path     string   `toml:"path"`
	Owner    string   `toml:"owner"`
	Tags     []string `toml:"tags"`
	Language string   `toml:"language"`
}

type declarationFile struct {
	Version int                 `toml:"version"`
	Modules []moduleDeclaration `toml:"module"`
}

type manifestRule struct {
	name     string
	language string
}

// manifestRules is consulted in order; when a directory holds several
// manifests the first rule wins.
var manifestRules = []manifestRule{
	{"package.json", "typescript"},
	{"pubspec.yaml", "dart"},
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"build.gradle.kts", "kotlin"},
}

// Modules builds the modules map through a cascade: explicit MODULES.toml
// declarations, then manifest files among the scanned records, then
// convention directories, then top-level directories as a last resort.
func (g *Generator) Modules(records []scanner.FileRecord) map[string]ModuleEntry {
	if declared := g.declaredModules(records); len(declared) > 0 {
		return declared
	}
	if detected := g.manifestModules(records); len(detected) > 0 {
		return detected
	}
	if conventional := g.conventionModules(records); len(conventional) > 0 {
		return conventional
	}
	return g.fallbackModules(records)
}

func (g *Generator) declaredModules(records []scanner.FileRecord) map[string]ModuleEntry {
	data, err := os.ReadFile(filepath.Join(g.root, DeclarationFile))
	if err != nil {
		return nil
	}

	var decl declarationFile
	if err := toml.Unmarshal(data, &decl); err != nil {
		g.logger.Warn("ignoring unparseable "+DeclarationFile, map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	entries := make(map[string]ModuleEntry, len(decl.Modules))
	for _, m := range decl.Modules {
		if m.Path == "" {
			g.logger.Warn("skipping module declaration without a path", map[string]interface{}{
				"name": m.Name,
			})
			continue
		}
		root := path.Clean(m.Path)

		entry := ModuleEntry{
			ID:       m.ID,
			Name:     m.Name,
			Language: m.Language,
			Source:   ModuleSourceDeclared,
			Owner:    m.Owner,
			Tags:     m.Tags,
		}
		if entry.ID == "" {
			entry.ID = moduleID(root)
		}
		if entry.Name == "" {
			entry.Name = path.Base(root)
		}
		g.fillModuleStats(&entry, root, records)
		entries[root] = entry
	}
	return entries
}

func (g *Generator) manifestModules(records []scanner.FileRecord) map[string]ModuleEntry {
	found := make(map[string]int)
	for _, rec := range records {
		for i, rule := range manifestRules {
			if rec.Name == rule.name {
				dir := path.Dir(rec.RelPath)
				if best, ok := found[dir]; !ok || i < best {
					found[dir] = i
				}
				break
			}
		}
	}
	if len(found) == 0 {
		return nil
	}

	// Shallower roots first, so a module swallows manifests nested
	// under it.
	dirs := make([]string, 0, len(found))
	for dir := range found {
		dirs = append(dirs, dir)
	}
	sortByDepth(dirs)

	entries := make(map[string]ModuleEntry, len(dirs))
	for _, dir := range dirs {
		if hasAncestorModule(dir, entries) {
			continue
		}
		rule := manifestRules[found[dir]]
		entry := ModuleEntry{
			ID:       moduleID(dir),
			Name:     g.manifestName(dir, rule.name),
			Manifest: rule.name,
			Language: rule.language,
			Source:   ModuleSourceManifest,
		}
		g.fillModuleStats(&entry, dir, records)
		entries[dir] = entry
	}
	return entries
}

// conventionDirs are directory names that mark a module by convention
// when no manifests exist.
var conventionDirs = []struct {
	name     string
	language string
}{
	{"src", ""},
	{"lib", ""},
	{"internal", "go"},
	{"pkg", "go"},
}

func (g *Generator) conventionModules(records []scanner.FileRecord) map[string]ModuleEntry {
	topLevel := topLevelDirs(records)

	entries := make(map[string]ModuleEntry)
	for _, conv := range conventionDirs {
		if !topLevel[conv.name] {
			continue
		}
		entry := ModuleEntry{
			ID:       moduleID(conv.name),
			Name:     conv.name,
			Language: conv.language,
			Source:   ModuleSourceConvention,
		}
		g.fillModuleStats(&entry, conv.name, records)
		entries[conv.name] = entry
	}
	return entries
}

func (g *Generator) fallbackModules(records []scanner.FileRecord) map[string]ModuleEntry {
	entries := make(map[string]ModuleEntry)
	for dir := range topLevelDirs(records) {
		if strings.HasPrefix(dir, ".") {
			continue
		}
		entry := ModuleEntry{
			ID:     moduleID(dir),
			Name:   dir,
			Source: ModuleSourceFallback,
		}
		g.fillModuleStats(&entry, dir, records)
		entries[dir] = entry
	}
	return entries
}

// fillModuleStats aggregates file and line counts for the records under
// the module root, detects the module's manifest when none is known,
// and infers the language when the entry has none.
func (g *Generator) fillModuleStats(entry *ModuleEntry, root string, records []scanner.FileRecord) {
	langCounts := make(map[string]int)
	manifests := make(map[string]bool)

	for _, rec := range records {
		if !underModule(rec.RelPath, root) {
			continue
		}
		entry.Files++
		entry.Lines += rec.Lines
		if rec.Role == string(config.RoleSource) || rec.Role == string(config.RoleTest) {
			langCounts[rec.Type]++
		}
		if path.Dir(rec.RelPath) == root {
			manifests[rec.Name] = true
		}
	}

	if entry.Manifest == "" {
		for _, rule := range manifestRules {
			if manifests[rule.name] {
				entry.Manifest = rule.name
				break
			}
		}
	}
	if entry.Language == "" {
		entry.Language = dominantLanguage(langCounts)
	}
	if entry.Language == "" {
		entry.Language = "unknown"
	}
}

// manifestName reads the module name out of its manifest, falling back
// to the directory name when the manifest is missing or silent.
func (g *Generator) manifestName(dir, manifest string) string {
	fallback := path.Base(dir)
	if dir == "." {
		fallback = filepath.Base(g.root)
	}

	data, err := os.ReadFile(filepath.Join(g.root, filepath.FromSlash(dir), manifest))
	if err != nil {
		return fallback
	}

	name := ""
	switch manifest {
	case "package.json":
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil {
			name = pkg.Name
		}
	case "pubspec.yaml":
		var spec struct {
			Name string `yaml:"name"`
		}
		if yaml.Unmarshal(data, &spec) == nil {
			name = spec.Name
		}
	case "Cargo.toml":
		var cargo struct {
			Package struct {
				Name string `toml:"name"`
			} `toml:"package"`
		}
		if btoml.Unmarshal(data, &cargo) == nil {
			name = cargo.Package.Name
		}
	case "pyproject.toml":
		var py struct {
			Project struct {
				Name string `toml:"name"`
			} `toml:"project"`
			Tool struct {
				Poetry struct {
					Name string `toml:"name"`
				} `toml:"poetry"`
			} `toml:"tool"`
		}
		if btoml.Unmarshal(data, &py) == nil {
			name = py.Project.Name
			if name == "" {
				name = py.Tool.Poetry.Name
			}
		}
	case "go.mod":
		name = goModuleName(data)
	}

	if name == "" {
		return fallback
	}
	return name
}

func goModuleName(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) >= 2 && fields[0] == "module" {
			modulePath := fields[1]
			if i := strings.LastIndex(modulePath, "/"); i >= 0 {
				modulePath = modulePath[i+1:]
			}
			return modulePath
		}
	}
	return ""
}

// moduleID derives a stable identifier from the normalized module path,
// so it survives unrelated reorganization.
func moduleID(root string) string {
	return fmt.Sprintf("projmap:mod:%016x", xxh3.HashString(path.Clean(root)))
}

func underModule(rel, root string) bool {
	if root == "." {
		return true
	}
	return rel == root || strings.HasPrefix(rel, root+"/")
}

func topLevelDirs(records []scanner.FileRecord) map[string]bool {
	dirs := make(map[string]bool)
	for _, rec := range records {
		if i := strings.Index(rec.RelPath, "/"); i > 0 {
			dirs[rec.RelPath[:i]] = true
		}
	}
	return dirs
}

func hasAncestorModule(dir string, entries map[string]ModuleEntry) bool {
	if dir != "." {
		if _, ok := entries["."]; ok {
			return true
		}
	}
	for parent := path.Dir(dir); parent != "."; parent = path.Dir(parent) {
		if _, ok := entries[parent]; ok {
			return true
		}
	}
	return false
}

func sortByDepth(dirs []string) {
	sort.Slice(dirs, func(i, j int) bool {
		da, db := pathDepth(dirs[i]), pathDepth(dirs[j])
		if da != db {
			return da < db
		}
		return dirs[i] < dirs[j]
	})
}

func pathDepth(dir string) int {
	if dir == "." {
		return 0
	}
	return strings.Count(dir, "/") + 1
}
