package content

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuanying/epubshelf/internal/epub"
)

// Extractor pulls bibliographic metadata and a cover image out of a container
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger uses slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract reads the metadata of the container at filePath.
// Only open failures are returned; missing fields get defaults and an
// unreadable cover is treated as absent.
func (e *Extractor) Extract(filePath string) (*BookMetadata, error) {
	c, err := epub.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer c.Close()

	logger := e.logger.With("file", filePath)
	for _, w := range c.Warnings() {
		logger.Warn("container warning", "warning", w)
	}

	md := c.Metadata()
	meta := &BookMetadata{
		Title:       UnknownTitle,
		Authors:     creatorNames(md.Creators),
		Publishers:  md.Publishers,
		ISBN:        findISBN(md.Identifiers),
		Language:    md.Language,
		Description: md.Description,
		Subjects:    md.Subjects,
		FilePath:    filePath,
	}
	if len(md.Titles) > 0 {
		meta.Title = md.Titles[0]
	}
	if len(md.Dates) > 0 {
		meta.PublishedDate = md.Dates[0]
	}
	if len(meta.Authors) == 0 {
		meta.Authors = []string{UnknownAuthor}
	}
	if len(meta.Publishers) == 0 {
		meta.Publishers = []string{UnknownPublisher}
	}

	meta.Cover = e.findCover(c, logger)
	return meta, nil
}

// findCover returns the first image item of the manifest in document order
func (e *Extractor) findCover(c *epub.Container, logger *slog.Logger) *Cover {
	for _, item := range c.Manifest().Items() {
		if !epub.IsImage(item.MediaType) {
			continue
		}
		data, err := c.ReadBytes(item)
		if err != nil {
			logger.Warn("failed to read cover image", "href", item.Href, "error", err)
			return nil
		}
		return &Cover{Data: data, MediaType: item.MediaType, Href: item.Href}
	}
	return nil
}

func creatorNames(creators []epub.Creator) []string {
	names := make([]string, 0, len(creators))
	for _, c := range creators {
		names = append(names, c.Name)
	}
	return names
}

// findISBN returns the first identifier marked as an ISBN, either by a
// "urn:isbn:" prefix or an opf:scheme of ISBN. The value is returned as written.
func findISBN(ids []epub.Identifier) string {
	for _, id := range ids {
		if strings.HasPrefix(strings.ToLower(id.Value), "urn:isbn:") || strings.EqualFold(id.Scheme, "ISBN") {
			return id.Value
		}
	}
	return ""
}
