// Package epubtest writes small EPUB files for tests.
package epubtest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Item is a manifest entry of a test book
type Item struct {
	ID        string
	Href      string // relative to the package document
	MediaType string
	Body      string
	Missing   bool // listed in the manifest but not stored in the archive
}

// Book describes a test EPUB whose package document lives at OEBPS/content.opf
type Book struct {
	Version  string // package version, "2.0" when empty
	Metadata string // inner XML of <metadata>
	Items    []Item
	Spine    []string
}

// Write stores the book in dir and returns its path
func (b Book) Write(t *testing.T, dir, name string) string {
	t.Helper()

	var manifest, spine strings.Builder
	for _, it := range b.Items {
		fmt.Fprintf(&manifest, "    <item id=%q href=%q media-type=%q/>\n", it.ID, it.Href, it.MediaType)
	}
	for _, id := range b.Spine {
		fmt.Fprintf(&spine, "    <itemref idref=%q/>\n", id)
	}
	version := b.Version
	if version == "" {
		version = "2.0"
	}
	metadata := b.Metadata
	if strings.HasPrefix(version, "3") {
		// required in every EPUB 3 package
		metadata += "\n    <meta property=\"dcterms:modified\">2020-01-01T00:00:00Z</meta>"
	}
	opf := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:opf="http://www.idpf.org/2007/opf" version=%q>
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
%s
  </metadata>
  <manifest>
%s  </manifest>
  <spine>
%s  </spine>
</package>`, version, metadata, manifest.String(), spine.String())

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("failed to create EPUB file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	write := func(name, body string, method uint16) {
		ew, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := ew.Write([]byte(body)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	write("mimetype", "application/epub+zip", zip.Store)
	write("META-INF/container.xml", `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, zip.Deflate)
	write("OEBPS/content.opf", opf, zip.Deflate)
	for _, it := range b.Items {
		if it.Missing {
			continue
		}
		write("OEBPS/"+it.Href, it.Body, zip.Deflate)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return p
}

// XHTML wraps body in a minimal content document
func XHTML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>t</title><link rel="stylesheet" href="style.css"/></head>
<body>` + body + `</body></html>`
}

// FakePNG is a tiny image payload that is never decoded
var FakePNG = []byte("\x89PNG\r\n\x1a\nfake-image-data")
