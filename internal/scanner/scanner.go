// Package scanner locates unit documents under the scan roots.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/patina-dev/patina/pkg/config"
	"github.com/patina-dev/patina/pkg/node"
)

// Scanner finds unit documents in a directory tree.
type Scanner struct {
	config *config.Config
}

// New creates a scanner with the given configuration.
func New(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// ScanPaths resolves every argument: files are taken as-is when they look
// like unit documents, directories are walked recursively. The result is
// sorted and deduplicated so downstream processing order is stable.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if node.IsUnitPath(path) && !s.excludedFile(filepath.Base(path)) {
				add(path)
			}
			continue
		}
		if err := s.walkDir(path, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

func (s *Scanner) walkDir(root string, add func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && s.excludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !node.IsUnitPath(path) || s.excludedFile(d.Name()) {
			return nil
		}
		add(path)
		return nil
	})
}

func (s *Scanner) excludedDir(name string) bool {
	for _, dir := range s.config.Exclude.Dirs {
		if name == dir {
			return true
		}
	}
	return false
}

func (s *Scanner) excludedFile(name string) bool {
	for _, pattern := range s.config.Exclude.Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
