package glob

import (
	"regexp"
	"strings"
)

// Translate converts a glob pattern into an anchored regular expression.
// Supported syntax: "**/" matches zero or more whole path segments, "**"
// matches any run of characters including separators, "*" matches a run of
// non-separator characters, "?" matches a single non-separator character.
// Everything else is matched literally.
func Translate(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString("(?:.*/)?")
				i += 3
			} else if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(".*")
				i += 2
			} else {
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '.', '+', '(', ')', '|', '[', ']', '{', '}', '^', '$', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	b.WriteByte('$')
	return b.String()
}

// Compile translates pattern and compiles the resulting expression.
func Compile(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(Translate(pattern))
}

// MustCompile is Compile for patterns known to be valid at build time.
func MustCompile(pattern string) *regexp.Regexp {
	return regexp.MustCompile(Translate(pattern))
}

// Match reports whether path matches pattern. Paths are expected in
// forward-slash form. Invalid patterns never match.
func Match(pattern, path string) bool {
	re, err := Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
