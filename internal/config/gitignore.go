package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"projmap/internal/glob"
	"projmap/internal/logging"
)

// loadGitignore reads <projectRoot>/.gitignore and compiles its rules.
// Comments and blank lines are skipped. Negation rules are unsupported
// and skipped. A missing file yields no rules.
func loadGitignore(projectRoot string, logger *logging.Logger) []*regexp.Regexp {
	content, err := os.ReadFile(filepath.Join(projectRoot, ".gitignore"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("cannot read .gitignore", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil
	}

	var rules []*regexp.Regexp
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		rules = append(rules, compileGitignoreLine(line, logger)...)
	}
	return rules
}

// compileGitignoreLine translates one gitignore rule into match
// expressions: a rule without a slash applies in every directory, a
// directory rule covers its whole subtree.
func compileGitignoreLine(line string, logger *logging.Logger) []*regexp.Regexp {
	pattern := strings.TrimSuffix(line, "/")
	if strings.HasPrefix(pattern, "/") {
		pattern = strings.TrimPrefix(pattern, "/")
	} else if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	var rules []*regexp.Regexp
	for _, p := range []string{pattern, pattern + "/**"} {
		re, err := glob.Compile(p)
		if err != nil {
			logger.Warn("skipping invalid .gitignore rule", map[string]interface{}{
				"rule":  line,
				"error": err.Error(),
			})
			return nil
		}
		rules = append(rules, re)
	}
	return rules
}
