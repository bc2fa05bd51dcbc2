package merge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExt(t *testing.T) {
	tests := map[string]string{
		"app.log":     ".log",
		"app.log.1":   ".1",
		"archive.LOG": ".LOG",
		".log":        "",
		".hidden.log": ".log",
		"README":      "",
	}
	for name, want := range tests {
		if got := fileExt(name); got != want {
			t.Errorf("fileExt(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestMatchesExtensionIsCaseSensitive(t *testing.T) {
	f := candidateFilter{extension: ".log"}

	if !f.matchesExtension(filepath.Join("a", "b", "x.log")) {
		t.Error("x.log should match .log")
	}
	if f.matchesExtension("x.LOG") {
		t.Error("x.LOG should not match .log")
	}
	if f.matchesExtension("x.log.gz") {
		t.Error("x.log.gz should not match .log")
	}
}

func TestIsOutput(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "merged.log")
	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer out.Close()

	other := filepath.Join(dir, "sub", "merged.log")
	if err := os.MkdirAll(filepath.Dir(other), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f := newCandidateFilter(Options{OutputPath: outPath, Extension: ".log"}, out)

	if !f.isOutput(outPath) {
		t.Error("output path itself should be recognised")
	}
	if !f.isOutput(filepath.Join(dir, ".", "merged.log")) {
		t.Error("differently spelled output path should be recognised")
	}
	if !f.isOutput(other) {
		t.Error("a file named like the output in another directory should be skipped")
	}

	link := filepath.Join(dir, "alias.log")
	if err := os.Link(outPath, link); err != nil {
		t.Skipf("hard links unsupported: %v", err)
	}
	if !f.isOutput(link) {
		t.Error("a hard link to the output should be recognised")
	}
	if f.isOutput(filepath.Join(dir, "sub", "other.log")) {
		t.Error("an unrelated name is not the output")
	}
}

func TestShouldSkipDirectory(t *testing.T) {
	dir := t.TempDir()
	f := newCandidateFilter(Options{ExcludeDirs: []string{filepath.Join(dir, "skip")}}, nil)

	if !f.shouldSkipDirectory(filepath.Join(dir, "skip")) {
		t.Error("excluded directory should be skipped")
	}
	if !f.shouldSkipDirectory(filepath.Join(dir, "skip", "nested")) {
		t.Error("directory below an excluded one should be skipped")
	}
	if f.shouldSkipDirectory(filepath.Join(dir, "skipper")) {
		t.Error("sibling sharing a prefix should not be skipped")
	}
}
