package maps

import (
	"bytes"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"projmap/internal/scanner"
)

func rec(relPath, fileType, role string, lines int) scanner.FileRecord {
	return scanner.FileRecord{
		RelPath: relPath,
		Name:    path.Base(relPath),
		Type:    fileType,
		Role:    role,
		Size:    int64(lines) * 10,
		Lines:   lines,
	}
}

func diskRec(t *testing.T, root, relPath, fileType, role, content string) scanner.FileRecord {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := rec(relPath, fileType, role, strings.Count(content, "\n")+1)
	r.Path = full
	return r
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestFilesMap(t *testing.T) {
	records := []scanner.FileRecord{
		rec("main.go", "go", "source", 42),
		rec("docs/guide.md", "markdown", "doc", 100),
	}
	records[0].GitStatus = "tracked"

	entries := NewGenerator(t.TempDir(), nil).Files(records)

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	main := entries["main.go"]
	if main.Type != "go" || main.Role != "source" {
		t.Errorf("main.go entry = %+v", main)
	}
	if main.Lines != 42 || main.Size != 420 {
		t.Errorf("main.go size/lines = %d/%d", main.Size, main.Lines)
	}
	if main.GitStatus != "tracked" {
		t.Errorf("GitStatus = %q, want tracked", main.GitStatus)
	}

	if _, ok := entries["docs/guide.md"]; !ok {
		t.Error("expected docs/guide.md keyed by relative path")
	}
}

func TestBuildProducesAllSections(t *testing.T) {
	root := t.TempDir()
	records := []scanner.FileRecord{
		diskRec(t, root, "main.ts", "typescript", "source",
			"import { help } from './helper';\nconsole.log(help);\n"),
		diskRec(t, root, "helper.ts", "typescript", "source",
			"export const help = 1;\n"),
		diskRec(t, root, "package.json", "json", "build",
			`{"name": "demo"}`),
	}
	res := &scanner.Result{Root: root, Files: records}
	res.Stats.TotalFiles = len(records)

	built, err := NewGenerator(root, nil).Build(res)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, name := range Names {
		raw, ok := built[name]
		if !ok {
			t.Fatalf("missing %s section", name)
		}
		var section map[string]json.RawMessage
		if err := json.Unmarshal(raw, &section); err != nil {
			t.Fatalf("%s section is not an object map: %v", name, err)
		}
	}

	var files map[string]FileEntry
	if err := json.Unmarshal(built[MapFiles], &files); err != nil {
		t.Fatalf("files unmarshal: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("files map has %d entries, want 3", len(files))
	}

	var deps map[string]DependencyEntry
	if err := json.Unmarshal(built[MapDependencies], &deps); err != nil {
		t.Fatalf("dependencies unmarshal: %v", err)
	}
	if got := deps["main.ts"].Imports; len(got) != 1 || got[0] != "helper.ts" {
		t.Errorf("main.ts imports = %v, want [helper.ts]", got)
	}

	var modules map[string]ModuleEntry
	if err := json.Unmarshal(built[MapModules], &modules); err != nil {
		t.Fatalf("modules unmarshal: %v", err)
	}
	if entry, ok := modules["."]; !ok || entry.Name != "demo" {
		t.Errorf("root module = %+v, want name demo", modules)
	}
}

func TestBuildDeterministic(t *testing.T) {
	root := t.TempDir()
	records := []scanner.FileRecord{
		diskRec(t, root, "src/a.ts", "typescript", "source",
			"import { b } from './b';\nimport axios from 'axios';\n"),
		diskRec(t, root, "src/b.ts", "typescript", "source",
			"export const b = 2;\n"),
		diskRec(t, root, "src/index.ts", "typescript", "source",
			"export * from './a';\n"),
	}
	res := &scanner.Result{Root: root, Files: records}

	gen := NewGenerator(root, nil)
	first, err := gen.Build(res)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := gen.Build(res)
	if err != nil {
		t.Fatalf("second Build failed: %v", err)
	}

	for _, name := range Names {
		if !bytes.Equal(first[name], second[name]) {
			t.Errorf("%s section differs between identical builds", name)
		}
	}
}
