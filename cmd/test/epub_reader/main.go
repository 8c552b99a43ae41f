// Test program for the EPUB container reader
//
// Usage:
//
//	go run ./cmd/test/epub_reader/main.go <epub-file-path> (<file-in-archive> ...)
//
// This program checks the following:
// - Opening the container (ZIP archive) and validating the mimetype entry
// - Locating and parsing the package document
// - Listing manifest items and the spine
// - Reading arbitrary files from the archive
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/yuanying/epubshelf/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/epub_reader/main.go <epub-file> (<file-in-archive> ...)")
		os.Exit(1)
	}

	epubPath := os.Args[1]
	filePaths := os.Args[2:]

	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	c, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer c.Close()

	fmt.Printf("✓ EPUB opened successfully\n")
	fmt.Printf("OPF Path: %s\n", c.OPFPath())
	for _, w := range c.Warnings() {
		fmt.Printf("⚠ %s\n", w)
	}

	meta := c.Metadata()
	fmt.Printf("\nTitles: %q\n", meta.Titles)
	for _, cr := range meta.Creators {
		fmt.Printf("Creator: %s (%s)\n", cr.Name, cr.Role)
	}
	for _, id := range meta.Identifiers {
		fmt.Printf("Identifier: %s (scheme=%s)\n", id.Value, id.Scheme)
	}

	m := c.Manifest()
	fmt.Printf("\nManifest items: %d\n", m.Len())
	for _, item := range m.Items() {
		fmt.Printf("  - %-20s %-28s %s\n", item.ID, item.MediaType, item.Href)
	}

	fmt.Println("\nSpine:")
	for i, s := range m.Spine() {
		item, ok := m.ByID(s.IDRef)
		if !ok {
			fmt.Printf("  %3d. %s ⚠ not in manifest\n", i+1, s.IDRef)
			continue
		}
		fmt.Printf("  %3d. %s -> %s\n", i+1, s.IDRef, item.Href)
	}

	for _, filePath := range filePaths {
		fmt.Printf("\nReading file: %s\n", filePath)
		data, err := c.ReadFile(filePath)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", filePath, err)
		}
		fmt.Printf("✓ %s read successfully (%d bytes)\n", filePath, len(data))
		fmt.Printf("Content:\n%s\n", string(data))
	}

	fmt.Println("\n✓ All checks passed!")
}
