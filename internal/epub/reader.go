package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"unicode/utf8"
)

const (
	epubMimetype     = "application/epub+zip"
	opfMediaType     = "application/oebps-package+xml"
	containerXMLPath = "META-INF/container.xml"
)

// MaxEntrySize is the maximum allowed decompressed size for a single entry.
// This guards against zip bombs.
const MaxEntrySize int64 = 256 * 1024 * 1024

// Container provides access to an open EPUB file
type Container struct {
	path      string
	zipReader *zip.ReadCloser
	files     map[string]*zip.File // normalized name -> entry
	folded    map[string]*zip.File // lower-cased name -> entry
	opfPath   string
	pkg       *Package
	warnings  []string
}

// container.xml structure
type containerXML struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens an EPUB file and parses its package document.
// Failures are returned as *OpenError.
func Open(path string) (*Container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, openError(path, ErrNotFound, err)
		}
		return nil, openError(path, ErrCorrupt, err)
	}

	c := &Container{
		path:      path,
		zipReader: zr,
		files:     make(map[string]*zip.File, len(zr.File)),
		folded:    make(map[string]*zip.File, len(zr.File)),
	}

	// Build file map with normalized paths
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := NormalizeHref(f.Name)
		if _, dup := c.files[name]; dup {
			continue
		}
		c.files[name] = f
		lower := strings.ToLower(name)
		if _, dup := c.folded[lower]; !dup {
			c.folded[lower] = f
		}
	}

	if err := c.load(); err != nil {
		zr.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) load() error {
	if err := c.validateMimetype(); err != nil {
		return err
	}

	opfPath, err := c.findPackageDocument()
	if err != nil {
		return openError(c.path, ErrCorrupt, err)
	}
	c.opfPath = opfPath

	data, err := c.ReadFile(opfPath)
	if err != nil {
		return openError(c.path, ErrCorrupt, fmt.Errorf("failed to read package document: %w", err))
	}

	opfDir := path.Dir(opfPath)
	if opfDir == "." {
		opfDir = ""
	}
	pkg, err := ParsePackage(data, opfDir)
	if err != nil {
		if errors.Is(err, ErrNoManifest) {
			return openError(c.path, ErrUnsupportedFormat, err)
		}
		return openError(c.path, ErrCorrupt, err)
	}
	c.pkg = pkg
	return nil
}

// validateMimetype checks the mimetype entry. A missing or compressed entry
// is recorded as a warning; a wrong declaration rejects the file.
func (c *Container) validateMimetype() error {
	f, ok := c.files["mimetype"]
	if !ok {
		c.warnf("mimetype file not found")
		return nil
	}

	if f.Method != zip.Store {
		c.warnf("mimetype should not be compressed")
	}

	content, err := c.ReadFile("mimetype")
	if err != nil {
		c.warnf("failed to read mimetype: %v", err)
		return nil
	}

	if got := strings.TrimSpace(string(content)); got != epubMimetype {
		return openError(c.path, ErrUnsupportedFormat, fmt.Errorf("mimetype is %q", got))
	}
	return nil
}

// findPackageDocument returns the archive path of the OPF file, using
// container.xml first and falling back to the first .opf entry.
func (c *Container) findPackageDocument() (string, error) {
	opfPath, err := c.parseContainerXML()
	if err == nil {
		if _, ok := c.lookup(opfPath); ok {
			return opfPath, nil
		}
		c.warnf("package document %q listed in container.xml is missing", opfPath)
	} else {
		c.warnf("%v", err)
	}

	for _, f := range c.zipReader.File {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			return NormalizeHref(f.Name), nil
		}
	}
	return "", errors.New("no package document found")
}

func (c *Container) parseContainerXML() (string, error) {
	content, err := c.ReadFile(containerXMLPath)
	if err != nil {
		return "", fmt.Errorf("%s not found", containerXMLPath)
	}

	var cx containerXML
	if err := xml.Unmarshal(content, &cx); err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}

	rootfiles := cx.Rootfiles.Rootfile
	for _, rf := range rootfiles {
		if rf.FullPath != "" && (rf.MediaType == opfMediaType || rf.MediaType == "") {
			return NormalizeHref(rf.FullPath), nil
		}
	}
	// If no media-type match, use the first one
	for _, rf := range rootfiles {
		if rf.FullPath != "" {
			return NormalizeHref(rf.FullPath), nil
		}
	}
	return "", errors.New("OPF path not found in container.xml")
}

func (c *Container) warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Close closes the underlying archive
func (c *Container) Close() error {
	return c.zipReader.Close()
}

// Path returns the file path the container was opened from
func (c *Container) Path() string {
	return c.path
}

// OPFPath returns the path to the package document
func (c *Container) OPFPath() string {
	return c.opfPath
}

// Package returns the parsed package document
func (c *Container) Package() *Package {
	return c.pkg
}

// Manifest returns the manifest model
func (c *Container) Manifest() *Manifest {
	return c.pkg.Manifest
}

// Metadata returns the package metadata
func (c *Container) Metadata() Metadata {
	return c.pkg.Metadata
}

// Warnings returns non-fatal problems found while opening the container
func (c *Container) Warnings() []string {
	return append([]string(nil), c.warnings...)
}

// ReadBytes returns the raw bytes of a manifest item
func (c *Container) ReadBytes(item ManifestItem) ([]byte, error) {
	return c.ReadFile(item.Href)
}

// ReadText returns the content of a manifest item decoded as UTF-8 text.
// A leading byte order mark is removed.
func (c *Container) ReadText(item ManifestItem) (string, error) {
	data, err := c.ReadFile(item.Href)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrInvalidText, item.Href)
	}
	return string(data), nil
}

// ReadFile reads the contents of a file from the archive
func (c *Container) ReadFile(name string) ([]byte, error) {
	f, ok := c.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if f.UncompressedSize64 > uint64(MaxEntrySize) {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	if int64(len(data)) > MaxEntrySize {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	return data, nil
}

// lookup finds an entry by exact normalized name, then case-insensitively
func (c *Container) lookup(name string) (*zip.File, bool) {
	name = NormalizeHref(name)
	if f, ok := c.files[name]; ok {
		return f, true
	}
	f, ok := c.folded[strings.ToLower(name)]
	return f, ok
}
