package watch

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFiles are read from the watched root, in order.
var IgnoreFiles = []string{".gitignore", ".riceignore"}

var defaultIgnores = []string{
	".git",
	"node_modules",
	"__pycache__",
	".venv",
	"vendor",
	"dist/",
	"build/",
	"target/",
	".idea",
	".vscode",
	"*.min.js",
	"*.d.ts",
}

// IgnoreFilter matches paths under root against gitignore patterns.
type IgnoreFilter struct {
	root     string
	patterns []gitignore.Pattern
}

// NewIgnoreFilter loads the default patterns plus the root's ignore files.
func NewIgnoreFilter(root string) (*IgnoreFilter, error) {
	f := &IgnoreFilter{root: root}

	for _, p := range defaultIgnores {
		f.patterns = append(f.patterns, gitignore.ParsePattern(p, nil))
	}
	for _, name := range IgnoreFiles {
		if err := f.load(filepath.Join(root, name)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *IgnoreFilter) load(path string) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.patterns = append(f.patterns, gitignore.ParsePattern(line, nil))
	}
	return scanner.Err()
}

// ShouldIgnore reports whether path is excluded. Later patterns win, so a
// negated pattern can re-include a path.
func (f *IgnoreFilter) ShouldIgnore(path string, isDir bool) bool {
	relPath, err := filepath.Rel(f.root, path)
	if err != nil || relPath == "." {
		return false
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	ignored := false
	for _, pattern := range f.patterns {
		switch pattern.Match(parts, isDir) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}
