package epub

import (
	"errors"
	"fmt"
)

// Open failure kinds. An *OpenError always matches exactly one of these
// with errors.Is.
var (
	// ErrNotFound indicates the container file does not exist.
	ErrNotFound = errors.New("epub: container not found")

	// ErrCorrupt indicates the file is not a readable zip archive or its
	// package document is missing or cannot be parsed.
	ErrCorrupt = errors.New("epub: container is corrupt")

	// ErrUnsupportedFormat indicates a readable archive that is not an
	// EPUB package (wrong mimetype declaration, no manifest).
	ErrUnsupportedFormat = errors.New("epub: unsupported container format")
)

// Read failures for individual entries.
var (
	ErrEntryNotFound = errors.New("epub: entry not found in archive")
	ErrEntryTooLarge = errors.New("epub: entry exceeds decompressed size limit")
	ErrInvalidText   = errors.New("epub: entry is not valid UTF-8 text")
	ErrNoManifest    = errors.New("epub: package document has no manifest")
)

// OpenError is returned by Open.
type OpenError struct {
	Path string
	Kind error // ErrNotFound, ErrCorrupt or ErrUnsupportedFormat
	Err  error // underlying cause, may be nil
}

func (e *OpenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("open %s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("open %s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *OpenError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func openError(path string, kind, err error) *OpenError {
	return &OpenError{Path: path, Kind: kind, Err: err}
}
