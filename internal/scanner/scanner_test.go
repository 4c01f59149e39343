package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/patina-dev/patina/pkg/config"
)

func TestNew(t *testing.T) {
	// With nil config
	s := New(nil)
	if s == nil {
		t.Fatal("New(nil) returned nil")
	}
	if s.config == nil {
		t.Error("scanner.config should not be nil when passing nil")
	}

	// With explicit config
	cfg := config.DefaultConfig()
	s = New(cfg)
	if s.config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", name, err)
		}
	}
}

func TestScanPathsDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"orders.unit.json":         `{"path":"orders"}`,
		"billing.unit.yaml":        "path: billing",
		"sub/users.unit.yml":       "path: users",
		"sub/readme.md":            "# not a unit",
		"notes.json":               `{}`,
		"vendor/dep.unit.json":     `{}`,
		".git/objects/x.unit.json": `{}`,
	})

	s := New(config.DefaultConfig())
	files, err := s.ScanPaths([]string{tmpDir})
	if err != nil {
		t.Fatalf("ScanPaths() error: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("ScanPaths() found %d unit documents, want 3: %v", len(files), files)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] > files[i] {
			t.Errorf("results not sorted: %v", files)
		}
	}
	for _, f := range files {
		dir := filepath.Base(filepath.Dir(f))
		if dir == "vendor" || dir == ".git" || dir == "objects" {
			t.Errorf("excluded directory leaked into results: %s", f)
		}
	}
}

func TestScanPathsExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"orders.unit.json": `{}`,
		"plain.json":       `{}`,
	})

	s := New(nil)

	files, err := s.ScanPaths([]string{filepath.Join(tmpDir, "orders.unit.json")})
	if err != nil {
		t.Fatalf("ScanPaths() error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("ScanPaths() found %d files, want 1", len(files))
	}

	// Non-unit files passed explicitly are ignored, not an error.
	files, err = s.ScanPaths([]string{filepath.Join(tmpDir, "plain.json")})
	if err != nil {
		t.Fatalf("ScanPaths() error: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected non-unit file to be skipped, got %v", files)
	}
}

func TestScanPathsMissing(t *testing.T) {
	s := New(nil)
	if _, err := s.ScanPaths([]string{"/nonexistent/path"}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestScanPathsExcludesPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"keep.unit.json":      `{}`,
		"generated.unit.json": `{}`,
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Patterns = []string{"generated.*"}
	s := New(cfg)

	files, err := s.ScanPaths([]string{tmpDir})
	if err != nil {
		t.Fatalf("ScanPaths() error: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "keep.unit.json" {
		t.Errorf("expected only keep.unit.json, got %v", files)
	}
}

func TestScanPathsDedup(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{"a.unit.json": `{}`})

	s := New(nil)
	path := filepath.Join(tmpDir, "a.unit.json")
	files, err := s.ScanPaths([]string{path, path, tmpDir})
	if err != nil {
		t.Fatalf("ScanPaths() error: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("expected deduplicated single result, got %v", files)
	}
}
