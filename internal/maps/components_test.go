package maps

import (
	"testing"

	"projmap/internal/scanner"
)

func TestComponentsScoring(t *testing.T) {
	records := []scanner.FileRecord{
		rec("src/index.ts", "typescript", "source", 5),
		rec("src/a.ts", "typescript", "source", 10),
		rec("src/b.ts", "typescript", "source", 1),
	}

	comps := NewGenerator(t.TempDir(), nil).Components(records)

	entry, ok := comps["src"]
	if !ok {
		t.Fatalf("expected src component, got %v", comps)
	}
	if entry.Name != "src" {
		t.Errorf("Name = %q, want src", entry.Name)
	}
	if entry.Files != 3 || entry.Lines != 16 {
		t.Errorf("Files/Lines = %d/%d, want 3/16", entry.Files, entry.Lines)
	}
	if !entry.HasIndex || !entry.Semantic {
		t.Errorf("HasIndex/Semantic = %v/%v, want true/true", entry.HasIndex, entry.Semantic)
	}
	if entry.Language != "typescript" {
		t.Errorf("Language = %q, want typescript", entry.Language)
	}
	// index 3 + files 2 + semantic 2 + language 1 + top level 1
	if entry.Score != 9 {
		t.Errorf("Score = %v, want 9", entry.Score)
	}
}

func TestComponentsBelowThreshold(t *testing.T) {
	records := []scanner.FileRecord{
		rec("docs/readme.md", "markdown", "doc", 40),
		rec("x/y/z.go", "go", "source", 10),
	}

	comps := NewGenerator(t.TempDir(), nil).Components(records)
	if len(comps) != 0 {
		t.Errorf("expected no qualifying components, got %v", comps)
	}
}

func TestComponentsRootFilesIgnored(t *testing.T) {
	records := []scanner.FileRecord{
		rec("main.go", "go", "source", 30),
		rec("README.md", "markdown", "doc", 10),
	}

	comps := NewGenerator(t.TempDir(), nil).Components(records)
	if len(comps) != 0 {
		t.Errorf("expected no component for the project root, got %v", comps)
	}
}

func TestComponentsSingleSourceTopLevel(t *testing.T) {
	records := []scanner.FileRecord{
		rec("api/server.go", "go", "source", 120),
	}

	comps := NewGenerator(t.TempDir(), nil).Components(records)

	entry, ok := comps["api"]
	if !ok {
		t.Fatalf("expected api component, got %v", comps)
	}
	// semantic 2 + language 1 + top level 1
	if entry.Score != 4 {
		t.Errorf("Score = %v, want 4", entry.Score)
	}
	if entry.Language != "go" {
		t.Errorf("Language = %q, want go", entry.Language)
	}
}

func TestComponentsPruneNested(t *testing.T) {
	records := []scanner.FileRecord{
		rec("src/a.ts", "typescript", "source", 10),
		rec("src/b.ts", "typescript", "source", 10),
		rec("src/c.ts", "typescript", "source", 10),
		rec("src/misc/m1.ts", "typescript", "source", 5),
		rec("src/misc/m2.ts", "typescript", "source", 5),
		rec("src/misc/m3.ts", "typescript", "source", 5),
		rec("src/utils/u1.ts", "typescript", "source", 5),
		rec("src/utils/u2.ts", "typescript", "source", 5),
		rec("src/utils/u3.ts", "typescript", "source", 5),
		rec("src/ui/index.ts", "typescript", "source", 5),
		rec("src/ui/view.ts", "typescript", "source", 5),
	}

	comps := NewGenerator(t.TempDir(), nil).Components(records)

	for _, dir := range []string{"src", "src/utils", "src/ui"} {
		if _, ok := comps[dir]; !ok {
			t.Errorf("expected %s to survive pruning, got %v", dir, comps)
		}
	}
	if _, ok := comps["src/misc"]; ok {
		t.Error("expected src/misc to be pruned under its qualified parent")
	}
	if len(comps) != 3 {
		t.Errorf("got %d components, want 3: %v", len(comps), comps)
	}
}

func TestDominantLanguage(t *testing.T) {
	tests := []struct {
		name   string
		counts map[string]int
		want   string
	}{
		{"empty", map[string]int{}, ""},
		{"clear winner", map[string]int{"python": 3, "go": 2}, "python"},
		{"tie breaks lexically", map[string]int{"python": 2, "go": 2}, "go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dominantLanguage(tt.counts); got != tt.want {
				t.Errorf("dominantLanguage = %q, want %q", got, tt.want)
			}
		})
	}
}
