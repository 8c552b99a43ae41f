// Test program for content rendering and metadata extraction
//
// Usage:
//
//	go run ./cmd/test/content_renderer/main.go <epub-file-path> [output.html]
//
// This program:
// 1. Extracts the bibliographic metadata and reports the detected cover
// 2. Lists the image references of every spine document and whether each
//    resolves to a manifest item
// 3. Renders the whole book and writes it to output.html when given
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"regexp"

	"github.com/yuanying/epubshelf/internal/content"
	"github.com/yuanying/epubshelf/internal/epub"
)

var imgSrc = regexp.MustCompile(`(?is)<img\b[^>]*?\ssrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <epub-file-path> [output.html]\n", os.Args[0])
		os.Exit(1)
	}
	epubPath := os.Args[1]
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fmt.Printf("=== Metadata ===\n")
	meta, err := content.NewExtractor(logger).Extract(epubPath)
	if err != nil {
		log.Fatalf("Failed to extract metadata: %v", err)
	}
	fmt.Printf("Title:      %s\n", meta.Title)
	fmt.Printf("Authors:    %q\n", meta.Authors)
	fmt.Printf("Publishers: %q\n", meta.Publishers)
	fmt.Printf("Date:       %s\n", meta.PublishedDate)
	fmt.Printf("ISBN:       %s\n", meta.ISBN)
	if meta.Cover != nil {
		fmt.Printf("Cover:      %s (%s, %d bytes)\n", meta.Cover.Href, meta.Cover.MediaType, len(meta.Cover.Data))
	} else {
		fmt.Printf("Cover:      none\n")
	}

	fmt.Printf("\n=== Image references ===\n")
	c, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	m := c.Manifest()
	resolved, unresolved := 0, 0
	for _, id := range m.SpineIDs() {
		item, ok := m.ByID(id)
		if !ok || !epub.IsContentDocument(item.MediaType) {
			continue
		}
		text, err := c.ReadText(item)
		if err != nil {
			fmt.Printf("[%s] ⚠ %v\n", item.Href, err)
			continue
		}
		for _, match := range imgSrc.FindAllStringSubmatch(text, -1) {
			ref := match[1] + match[2]
			target, ok := epub.ResolveHref(item.Href, ref)
			if _, found := m.ByHref(target); ok && found {
				fmt.Printf("[%s] ✓ %s -> %s\n", item.Href, ref, target)
				resolved++
			} else {
				fmt.Printf("[%s] ✗ %s\n", item.Href, ref)
				unresolved++
			}
		}
	}
	c.Close()
	fmt.Printf("Resolved: %d, unresolved: %d\n", resolved, unresolved)

	fmt.Printf("\n=== Render ===\n")
	html, err := content.NewRenderer(logger).Render(epubPath)
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}
	fmt.Printf("✓ Rendered %d bytes\n", len(html))

	if len(os.Args) > 2 {
		if err := os.WriteFile(os.Args[2], []byte(html), 0o644); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("✓ Written to %s\n", os.Args[2])
	}
}
