package config

import (
	"path/filepath"
	"strings"
)

// Role classifies what a file is for within the project
type Role string

const (
	RoleSource  Role = "source"
	RoleTest    Role = "test"
	RoleConfig  Role = "config"
	RoleDoc     Role = "doc"
	RoleBuild   Role = "build"
	RoleStyle   Role = "style"
	RoleUnknown Role = "unknown"
)

type roleRule struct {
	label Role
	match func(name string) bool
}

// roleRules is evaluated in order; the first matching rule wins. Test
// patterns sit ahead of the extension rules so foo.test.ts classifies
// as test rather than source.
var roleRules = []roleRule{
	{RoleTest, isTestFile},
	{RoleBuild, isBuildFile},
	{RoleStyle, hasExt(styleExts)},
	{RoleDoc, hasExt(docExts)},
	{RoleConfig, isConfigFile},
	{RoleSource, hasExt(sourceExts)},
}

// FileRole classifies a file by its base name. Unmatched names get
// RoleUnknown, never an empty role.
func FileRole(name string) Role {
	for _, rule := range roleRules {
		if rule.match(name) {
			return rule.label
		}
	}
	return RoleUnknown
}

// IsText reports whether line counting applies to the file. Every
// classified role maps to a text format; only unknown files are skipped.
func IsText(name string) bool {
	return FileRole(name) != RoleUnknown
}

var sourceExts = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".go": true, ".py": true, ".rs": true, ".java": true, ".kt": true, ".kts": true,
	".rb": true, ".php": true, ".c": true, ".h": true, ".cc": true, ".cpp": true,
	".hpp": true, ".cs": true, ".swift": true, ".dart": true, ".scala": true,
	".sh": true, ".bash": true, ".lua": true, ".sql": true, ".html": true,
	".vue": true, ".svelte": true,
}

var styleExts = map[string]bool{
	".css": true, ".scss": true, ".sass": true, ".less": true, ".styl": true,
}

var docExts = map[string]bool{
	".md": true, ".mdx": true, ".markdown": true, ".rst": true, ".txt": true,
	".adoc": true,
}

var configExts = map[string]bool{
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".env": true, ".conf": true, ".cfg": true, ".properties": true,
}

var buildFileNames = map[string]bool{
	"makefile": true, "dockerfile": true, "cmakelists.txt": true,
	"package.json": true, "go.mod": true, "go.sum": true,
	"cargo.toml": true, "pyproject.toml": true, "setup.py": true,
	"build.gradle": true, "build.gradle.kts": true, "pom.xml": true,
	"pubspec.yaml": true, "gemfile": true, "rakefile": true, "justfile": true,
	"docker-compose.yml": true, "docker-compose.yaml": true, "meson.build": true,
}

var buildExts = map[string]bool{
	".mk": true, ".gradle": true, ".bazel": true, ".bzl": true,
}

var testMarkers = []string{".test.", ".spec.", "_test.", "_spec."}

func isTestFile(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range testMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasPrefix(lower, "test_")
}

func isBuildFile(name string) bool {
	lower := strings.ToLower(name)
	return buildFileNames[lower] || buildExts[strings.ToLower(filepath.Ext(name))]
}

func isConfigFile(name string) bool {
	lower := strings.ToLower(name)
	if configExts[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	// Dotfile conventions: .eslintrc, .npmrc, .gitignore and friends
	return strings.HasPrefix(lower, ".") &&
		(strings.HasSuffix(lower, "rc") || strings.HasSuffix(lower, "ignore") ||
			lower == ".editorconfig" || lower == ".gitattributes")
}

func hasExt(set map[string]bool) func(string) bool {
	return func(name string) bool {
		return set[strings.ToLower(filepath.Ext(name))]
	}
}

var typeByExt = map[string]string{
	".ts": "typescript", ".tsx": "typescript",
	".js": "javascript", ".jsx": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".go": "go", ".py": "python", ".rs": "rust", ".java": "java",
	".kt": "kotlin", ".kts": "kotlin", ".rb": "ruby", ".php": "php",
	".c": "c", ".h": "c", ".cc": "cpp", ".cpp": "cpp", ".hpp": "cpp",
	".cs": "csharp", ".swift": "swift", ".dart": "dart", ".scala": "scala",
	".sh": "shell", ".bash": "shell", ".lua": "lua", ".sql": "sql",
	".html": "html", ".vue": "vue", ".svelte": "svelte",
	".css": "css", ".scss": "css", ".sass": "css", ".less": "css", ".styl": "css",
	".json": "json", ".yaml": "yaml", ".yml": "yaml", ".toml": "toml",
	".ini": "ini", ".env": "env", ".xml": "xml",
	".md": "markdown", ".mdx": "markdown", ".markdown": "markdown",
	".rst": "rst", ".txt": "text", ".adoc": "asciidoc",
}

// FileType names the language or format of a file. Unmapped extensions
// fall back to the bare extension; extensionless files report "unknown".
func FileType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := typeByExt[ext]; ok {
		return t
	}
	if buildFileNames[strings.ToLower(name)] {
		return "build"
	}
	if ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return "unknown"
}
