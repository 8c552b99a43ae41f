package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Extension is the file extension of candidate containers, matched
// case-insensitively
const Extension = ".epub"

// ErrNotDirectory is returned when the scan root is not a directory
var ErrNotDirectory = errors.New("not a directory")

// Scanner discovers book files under a directory tree
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a Scanner. A nil logger uses slog.Default().
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan walks root recursively and returns the paths of all regular files
// with a .epub extension, in lexical walk order. A symlinked root is
// followed, and returned paths stay under root as given. Subdirectories that
// cannot be read are logged and skipped; only an unreadable root is an error.
func (s *Scanner) Scan(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: %w", root, ErrNotDirectory)
	}

	// WalkDir does not descend into a symlinked root
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	var paths []string
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == resolved {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if IsBookFile(path) {
			paths = append(paths, underRoot(root, resolved, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	s.logger.Debug("library scan finished", "root", root, "found", len(paths))
	return paths, nil
}

// underRoot maps a path found under resolved back under root
func underRoot(root, resolved, path string) string {
	if root == resolved {
		return path
	}
	rel, err := filepath.Rel(resolved, path)
	if err != nil {
		return path
	}
	return filepath.Join(root, rel)
}

// IsBookFile reports whether path has the book extension
func IsBookFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
