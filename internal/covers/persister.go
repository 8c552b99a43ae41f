package covers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultDir is the covers directory used when none is configured.
// It is relative to the working directory of the process.
const DefaultDir = "covers"

// Persister writes cover images into a single directory
type Persister struct {
	dir string
}

// NewPersister creates a Persister for dir. The directory is created on
// the first write.
func NewPersister(dir string) *Persister {
	if dir == "" {
		dir = DefaultDir
	}
	return &Persister{dir: dir}
}

// Dir returns the covers directory
func (p *Persister) Dir() string {
	return p.dir
}

// Store writes data as <sanitized baseFilename>.<ext> and returns the stored
// path. An existing file with the same name is overwritten.
func (p *Persister) Store(data []byte, mediaType, baseFilename string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create covers dir: %w", err)
	}

	dest := filepath.Join(p.dir, SanitizeFilename(baseFilename)+"."+Extension(mediaType))
	if err := writeFileAtomic(p.dir, dest, data); err != nil {
		return "", fmt.Errorf("write cover %s: %w", dest, err)
	}
	return dest, nil
}

// Extension maps an image media type to a file extension. Unknown types
// get "jpg".
func Extension(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

// SanitizeFilename keeps letters, digits, '.', '-' and '_' in their original
// order and drops everything else. An empty result becomes "cover".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "cover"
	}
	return b.String()
}

// writeFileAtomic writes to a temp file in dir and renames it over dest
func writeFileAtomic(dir, dest string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, "cover_tmp_")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // Clean up if we didn't rename
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}
