package config

import (
	"regexp"
	"strings"

	"projmap/internal/glob"
	"projmap/internal/logging"
)

// Resolver answers include/exclude questions for project-relative paths.
// Patterns are compiled once at construction; invalid patterns are
// dropped with a warning rather than failing the scan.
type Resolver struct {
	Config *Config

	include     []*regexp.Regexp
	exclude     []*regexp.Regexp
	gitignore   []*regexp.Regexp
	excludeDirs map[string]bool
}

// NewResolver compiles the config's patterns against a project root.
// The root is only consulted for .gitignore when respectGitignore is set.
func NewResolver(cfg *Config, projectRoot string, logger *logging.Logger) *Resolver {
	r := &Resolver{
		Config:      cfg,
		include:     compilePatterns(cfg.Scanner.Include, logger),
		exclude:     compilePatterns(cfg.Scanner.Exclude, logger),
		excludeDirs: make(map[string]bool, len(cfg.Scanner.ExcludeDirs)),
	}
	for _, dir := range cfg.Scanner.ExcludeDirs {
		r.excludeDirs[dir] = true
	}
	if cfg.Scanner.RespectGitignore {
		r.gitignore = loadGitignore(projectRoot, logger)
	}
	return r
}

func compilePatterns(patterns []string, logger *logging.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := glob.Compile(p)
		if err != nil {
			logger.Warn("skipping invalid glob pattern", map[string]interface{}{
				"pattern": p,
				"error":   err.Error(),
			})
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// ShouldExclude reports whether a project-relative path (forward slashes)
// is filtered out: by an excluded directory segment, an exclude glob, or
// a .gitignore rule.
func (r *Resolver) ShouldExclude(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if r.excludeDirs[segment] {
			return true
		}
	}
	for _, re := range r.exclude {
		if re.MatchString(rel) {
			return true
		}
	}
	for _, re := range r.gitignore {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// ShouldInclude reports whether a project-relative path survives the
// exclusion rules and matches at least one include glob. A path excluded
// by ShouldExclude is never included.
func (r *Resolver) ShouldInclude(rel string) bool {
	if r.ShouldExclude(rel) {
		return false
	}
	for _, re := range r.include {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// IsExcludedDir reports whether a directory base name is pruned from
// traversal entirely.
func (r *Resolver) IsExcludedDir(name string) bool {
	return r.excludeDirs[name]
}
