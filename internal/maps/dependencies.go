package maps

import (
	"bufio"
	"bytes"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"projmap/internal/config"
	"projmap/internal/scanner"
)

// DependencyEntry is one dependency-map value. Project files carry both
// directions; targets that are not scanned files (external packages,
// unresolved imports) carry only the reverse edges.
type DependencyEntry struct {
	Imports    []string `json:"imports,omitempty"`
	ImportedBy []string `json:"importedBy,omitempty"`
}

// scriptImportPatterns covers the TypeScript/JavaScript import forms.
// Line-based pattern matching, not a parser: strings that merely look
// like imports inside other constructs can slip through.
var scriptImportPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`export\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
}

// importPatterns maps a file type to its import extraction patterns.
// Within one line the first matching pattern wins, so ordering puts the
// more specific forms first.
var importPatterns = map[string][]*regexp.Regexp{
	"typescript": scriptImportPatterns,
	"javascript": scriptImportPatterns,
	"go": {
		regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`),
		regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"\s*(?://.*)?$`),
	},
	"python": {
		regexp.MustCompile(`^\s*from\s+(\S+)\s+import\b`),
		regexp.MustCompile(`^\s*import\s+([^\s,;#]+)`),
	},
	"rust": {
		regexp.MustCompile(`^\s*(?:pub\s+)?use\s+([^;{]+)`),
		regexp.MustCompile(`^\s*extern\s+crate\s+([^;]+)`),
	},
	"dart": {
		regexp.MustCompile(`^\s*(?:import|export)\s+['"]([^'"]+)['"]`),
	},
	"java": {
		regexp.MustCompile(`^\s*import\s+static\s+([^;]+);`),
		regexp.MustCompile(`^\s*import\s+([^;]+);`),
	},
	"kotlin": {
		regexp.MustCompile(`^\s*import\s+([^\s;]+)`),
	},
}

var scriptExts = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

var scriptIndexNames = []string{"index.ts", "index.tsx", "index.js", "index.jsx"}

// Dependencies builds the dependency map from the scanned files: per
// file the forward import list, and per import target the files that
// reference it. Relative script imports resolve onto scanned files;
// everything else keeps its raw import string as the key.
func (g *Generator) Dependencies(records []scanner.FileRecord) map[string]DependencyEntry {
	known := make(map[string]bool, len(records))
	for _, rec := range records {
		known[rec.RelPath] = true
	}

	forward := make(map[string]map[string]bool)
	reverse := make(map[string]map[string]bool)

	for _, rec := range records {
		patterns, ok := importPatterns[rec.Type]
		if !ok {
			continue
		}
		if rec.Role != string(config.RoleSource) && rec.Role != string(config.RoleTest) {
			continue
		}

		data, err := os.ReadFile(rec.Path)
		if err != nil {
			g.logger.Debug("skipping unreadable file in import scan", map[string]interface{}{
				"path":  rec.RelPath,
				"error": err.Error(),
			})
			continue
		}

		for _, imp := range parseImports(data, patterns) {
			target := resolveImport(rec.Type, rec.RelPath, imp, known)
			if target == rec.RelPath {
				continue
			}
			addEdge(forward, rec.RelPath, target)
			addEdge(reverse, target, rec.RelPath)
		}
	}

	entries := make(map[string]DependencyEntry)
	for file, targets := range forward {
		entry := entries[file]
		entry.Imports = sortedKeys(targets)
		entries[file] = entry
	}
	for target, sources := range reverse {
		entry := entries[target]
		entry.ImportedBy = sortedKeys(sources)
		entries[target] = entry
	}
	return entries
}

// parseImports extracts import targets line by line. The first pattern
// that matches a line consumes it.
func parseImports(data []byte, patterns []*regexp.Regexp) []string {
	var imports []string

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		for _, re := range patterns {
			matches := re.FindAllStringSubmatch(line, -1)
			if len(matches) == 0 {
				continue
			}
			for _, m := range matches {
				if len(m) > 1 {
					if imp := cleanImport(m[1]); imp != "" {
						imports = append(imports, imp)
					}
				}
			}
			break
		}
	}
	return imports
}

// cleanImport trims the residue the broad captures leave behind, such
// as the trailing separators of a rust group import.
func cleanImport(imp string) string {
	return strings.TrimRight(strings.TrimSpace(imp), ": ")
}

// resolveImport maps an import string onto a scanned file where the
// language allows it. Script imports resolve relative specifiers with
// the usual extension and index lookups; dart resolves bare relative
// URIs. Anything else stays raw.
func resolveImport(fileType, fromRel, imp string, known map[string]bool) string {
	dir := path.Dir(fromRel)

	switch fileType {
	case "typescript", "javascript":
		if !strings.HasPrefix(imp, "./") && !strings.HasPrefix(imp, "../") {
			return imp
		}
		base := path.Join(dir, imp)
		if known[base] {
			return base
		}
		for _, ext := range scriptExts {
			if known[base+ext] {
				return base + ext
			}
		}
		for _, index := range scriptIndexNames {
			if candidate := path.Join(base, index); known[candidate] {
				return candidate
			}
		}
	case "dart":
		if strings.Contains(imp, ":") {
			return imp
		}
		if candidate := path.Join(dir, imp); known[candidate] {
			return candidate
		}
	}
	return imp
}

func addEdge(edges map[string]map[string]bool, from, to string) {
	if edges[from] == nil {
		edges[from] = make(map[string]bool)
	}
	edges[from][to] = true
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
