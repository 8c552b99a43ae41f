package epub

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type zipEntry struct {
	Name   string
	Body   string
	Stored bool
}

const containerXMLBody = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const minimalOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

// writeZip writes the entries into a zip file in dir and returns its path
func writeZip(t *testing.T, dir, name string, entries []zipEntry) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.Stored {
			method = zip.Store
		}
		ew, err := w.CreateHeader(&zip.FileHeader{Name: e.Name, Method: method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", e.Name, err)
		}
		if _, err := ew.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return p
}

// createTestEPUB creates a minimal valid EPUB file for testing
func createTestEPUB(t *testing.T, dir string) string {
	t.Helper()
	return writeZip(t, dir, "test.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
		{Name: "META-INF/container.xml", Body: containerXMLBody},
		{Name: "OEBPS/content.opf", Body: minimalOPF},
		{Name: "OEBPS/chapter1.xhtml", Body: `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title></head>
<body><h1>Chapter 1</h1><p>Hello, World!</p></body>
</html>`},
	})
}

func TestOpen(t *testing.T) {
	reader, err := Open(createTestEPUB(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	if got := reader.OPFPath(); got != "OEBPS/content.opf" {
		t.Errorf("OPFPath() = %q, want %q", got, "OEBPS/content.opf")
	}
	if got := reader.Manifest().Len(); got != 1 {
		t.Errorf("Manifest().Len() = %d, want 1", got)
	}
	if len(reader.Warnings()) != 0 {
		t.Errorf("Warnings() = %v, want none", reader.Warnings())
	}
}

func TestOpen_FileNotFound(t *testing.T) {
	_, err := Open("/nonexistent/file.epub")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Open() error type = %T, want *OpenError", err)
	}
	if openErr.Path != "/nonexistent/file.epub" {
		t.Errorf("OpenError.Path = %q", openErr.Path)
	}
}

func TestOpen_NotAZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.epub")
	if err := os.WriteFile(p, []byte("definitely not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(p)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Open() error = %v, want ErrCorrupt", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Open() error %v matches more than one kind", err)
	}
}

func TestOpen_InvalidMimetype(t *testing.T) {
	p := writeZip(t, t.TempDir(), "invalid_mimetype.epub", []zipEntry{
		{Name: "mimetype", Body: "text/plain", Stored: true},
		{Name: "META-INF/container.xml", Body: containerXMLBody},
		{Name: "OEBPS/content.opf", Body: minimalOPF},
	})

	_, err := Open(p)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestOpen_CompressedMimetypeIsTolerated(t *testing.T) {
	p := writeZip(t, t.TempDir(), "compressed_mimetype.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip"},
		{Name: "META-INF/container.xml", Body: containerXMLBody},
		{Name: "OEBPS/content.opf", Body: minimalOPF},
	})

	reader, err := Open(p)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	if len(reader.Warnings()) != 1 {
		t.Errorf("Warnings() = %v, want one warning", reader.Warnings())
	}
}

func TestOpen_NoContainerFallsBackToOPF(t *testing.T) {
	p := writeZip(t, t.TempDir(), "no_container.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
		{Name: "book/package.opf", Body: minimalOPF},
	})

	reader, err := Open(p)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	if got := reader.OPFPath(); got != "book/package.opf" {
		t.Errorf("OPFPath() = %q, want %q", got, "book/package.opf")
	}
	item, ok := reader.Manifest().ByID("chapter1")
	if !ok {
		t.Fatal("ByID(chapter1) not found")
	}
	if item.Href != "book/chapter1.xhtml" {
		t.Errorf("Href = %q, want %q", item.Href, "book/chapter1.xhtml")
	}
}

func TestOpen_NoPackageDocument(t *testing.T) {
	p := writeZip(t, t.TempDir(), "empty.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
	})

	_, err := Open(p)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Open() error = %v, want ErrCorrupt", err)
	}
}

func TestOpen_MalformedPackageDocument(t *testing.T) {
	p := writeZip(t, t.TempDir(), "bad_opf.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
		{Name: "META-INF/container.xml", Body: containerXMLBody},
		{Name: "OEBPS/content.opf", Body: `<html><body>not a package</body></html>`},
	})

	_, err := Open(p)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Open() error = %v, want ErrCorrupt", err)
	}
}

func TestOpen_PackageWithoutManifest(t *testing.T) {
	p := writeZip(t, t.TempDir(), "no_manifest.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
		{Name: "META-INF/container.xml", Body: containerXMLBody},
		{Name: "OEBPS/content.opf", Body: `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>X</dc:title></metadata>
  <spine/>
</package>`},
	})

	_, err := Open(p)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open() error = %v, want ErrUnsupportedFormat", err)
	}
}

// Test path normalization (handling of ./ prefix)
func TestOpen_PathNormalization(t *testing.T) {
	p := writeZip(t, t.TempDir(), "normalized.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
		{Name: "META-INF/container.xml", Body: `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="./OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`},
		{Name: "OEBPS/content.opf", Body: minimalOPF},
	})

	reader, err := Open(p)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	// Should normalize ./OEBPS/content.opf to OEBPS/content.opf
	if reader.OPFPath() != "OEBPS/content.opf" {
		t.Errorf("OPFPath() = %q, want %q (path should be normalized)", reader.OPFPath(), "OEBPS/content.opf")
	}
}

func TestContainer_ReadText(t *testing.T) {
	reader, err := Open(createTestEPUB(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	item, _ := reader.Manifest().ByID("chapter1")
	text, err := reader.ReadText(item)
	if err != nil {
		t.Fatalf("ReadText() failed: %v", err)
	}
	if want := "<p>Hello, World!</p>"; !strings.Contains(text, want) {
		t.Errorf("ReadText() = %q, want it to contain %q", text, want)
	}
}

func TestContainer_ReadText_InvalidUTF8(t *testing.T) {
	p := writeZip(t, t.TempDir(), "latin1.epub", []zipEntry{
		{Name: "mimetype", Body: "application/epub+zip", Stored: true},
		{Name: "META-INF/container.xml", Body: containerXMLBody},
		{Name: "OEBPS/content.opf", Body: minimalOPF},
		{Name: "OEBPS/chapter1.xhtml", Body: "<p>caf\xe9</p>"},
	})

	reader, err := Open(p)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	item, _ := reader.Manifest().ByID("chapter1")
	if _, err := reader.ReadText(item); !errors.Is(err, ErrInvalidText) {
		t.Errorf("ReadText() error = %v, want ErrInvalidText", err)
	}
	data, err := reader.ReadBytes(item)
	if err != nil {
		t.Fatalf("ReadBytes() failed: %v", err)
	}
	if string(data) != "<p>caf\xe9</p>" {
		t.Errorf("ReadBytes() = %q", data)
	}
}

func TestContainer_ReadFile_NotFound(t *testing.T) {
	reader, err := Open(createTestEPUB(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	_, err = reader.ReadFile("nonexistent.txt")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("ReadFile() error = %v, want ErrEntryNotFound", err)
	}
}

func TestContainer_ReadFile_CaseInsensitiveFallback(t *testing.T) {
	reader, err := Open(createTestEPUB(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.ReadFile("oebps/Chapter1.XHTML"); err != nil {
		t.Errorf("ReadFile() with different case failed: %v", err)
	}
}
