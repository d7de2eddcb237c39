package config

import (
	"os"
	"path/filepath"
	"testing"

	"projmap/internal/logging"
)

func newTestResolver(t *testing.T, cfg *Config) *Resolver {
	t.Helper()
	return NewResolver(cfg, t.TempDir(), logging.Nop())
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.Exclude = []string{"**/*.min.js", "generated/**"}
	cfg.Scanner.ExcludeDirs = []string{"node_modules", ".git"}
	cfg.Scanner.RespectGitignore = false
	r := newTestResolver(t, cfg)

	tests := []struct {
		rel  string
		want bool
	}{
		{"src/app.ts", false},
		{"node_modules/pkg/index.js", true},
		{"deep/node_modules/x.js", true},
		{".git/HEAD", true},
		{"bundle.min.js", true},
		{"vendor-free/app.min.js", true},
		{"generated/api.ts", true},
		{"generated/deep/api.ts", true},
		{"src/generated.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := r.ShouldExclude(tt.rel); got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestShouldInclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.Include = []string{"**/*.go", "**/*.md"}
	cfg.Scanner.Exclude = []string{"**/*_gen.go"}
	cfg.Scanner.RespectGitignore = false
	r := newTestResolver(t, cfg)

	tests := []struct {
		rel  string
		want bool
	}{
		{"main.go", true},
		{"internal/app/server.go", true},
		{"README.md", true},
		{"main.py", false},
		{"api_gen.go", false},
		{"vendor/lib.go", false}, // excluded dir wins over include
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := r.ShouldInclude(tt.rel); got != tt.want {
				t.Errorf("ShouldInclude(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestExcludeWinsOverInclude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.Include = []string{"**/*.js"}
	cfg.Scanner.Exclude = []string{"**/*.js"}
	cfg.Scanner.RespectGitignore = false
	r := newTestResolver(t, cfg)

	if r.ShouldInclude("app.js") {
		t.Error("a path matched by both include and exclude must be excluded")
	}
	if !r.ShouldExclude("app.js") {
		t.Error("ShouldExclude should be true")
	}
}

func TestGitignoreRules(t *testing.T) {
	dir := t.TempDir()
	gitignore := `# build output
dist/
*.log

!keep.log
secrets.json
`
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0644); err != nil {
		t.Fatalf("failed to write .gitignore: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Scanner.ExcludeDirs = nil
	cfg.Scanner.Exclude = nil
	r := NewResolver(cfg, dir, logging.Nop())

	tests := []struct {
		rel  string
		want bool
	}{
		{"dist", true},
		{"dist/bundle.js", true},
		{"src/dist/x.js", true}, // directory rules apply at any depth
		{"debug.log", true},
		{"logs/debug.log", true},    // bare pattern applies in any directory
		{"keep.log", true},          // negations are unsupported, *.log still wins
		{"secrets.json", true},
		{"config/secrets.json", true},
		{"src/app.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := r.ShouldExclude(tt.rel); got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestInvalidPatternSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.Include = []string{"**/*.go"}
	cfg.Scanner.RespectGitignore = false
	r := newTestResolver(t, cfg)

	// Still matches through the valid pattern
	if !r.ShouldInclude("main.go") {
		t.Error("valid patterns should still work")
	}
}

func TestIsExcludedDir(t *testing.T) {
	cfg := DefaultConfig()
	r := newTestResolver(t, cfg)

	if !r.IsExcludedDir("node_modules") {
		t.Error("node_modules should be an excluded dir")
	}
	if r.IsExcludedDir("src") {
		t.Error("src should not be an excluded dir")
	}
}
