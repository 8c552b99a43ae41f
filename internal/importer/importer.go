// Package importer adds book files to the catalogue: metadata is extracted,
// the cover stored and the record upserted.
package importer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuanying/epubshelf/internal/content"
	"github.com/yuanying/epubshelf/internal/store"
)

// Pipeline is the subset of the content pipeline the importer needs.
type Pipeline interface {
	Extract(ctx context.Context, path string) (*content.BookMetadata, error)
	StoreCover(ctx context.Context, data []byte, mediaType, baseFilename string) (string, error)
	StoreThumbnail(ctx context.Context, coverPath string) (string, error)
	Scan(ctx context.Context, root string) ([]string, error)
}

// BookStore persists imported books.
type BookStore interface {
	GetBookByFilePath(path string) (*store.Book, error)
	UpsertBook(book *store.Book) error
}

// Enqueuer hands book files to a background import queue.
type Enqueuer interface {
	EnqueueImports(ctx context.Context, paths []string, force bool) ([]string, error)
}

// Result summarizes a library import.
type Result struct {
	Found    int      `json:"found"`
	Queued   int      `json:"queued"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer imports book files into the catalogue.
type Importer struct {
	pipeline Pipeline
	books    BookStore
	queue    Enqueuer
	logger   *slog.Logger
}

// New creates an Importer. A nil logger uses slog.Default().
func New(pipeline Pipeline, books BookStore, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{pipeline: pipeline, books: books, logger: logger}
}

// ImportFile imports a single book. A book already in the catalogue is left
// alone unless force is set; in that case the returned bool is false.
func (i *Importer) ImportFile(ctx context.Context, path string, force bool) (*store.Book, bool, error) {
	if !force {
		existing, err := i.books.GetBookByFilePath(path)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, store.ErrBookNotFound) {
			return nil, false, fmt.Errorf("lookup %s: %w", path, err)
		}
	}

	meta, err := i.pipeline.Extract(ctx, path)
	if err != nil {
		return nil, false, fmt.Errorf("extract %s: %w", path, err)
	}

	book := bookFromMetadata(meta)
	if meta.Cover != nil {
		i.storeCover(ctx, book, meta.Cover)
	}

	if err := i.books.UpsertBook(book); err != nil {
		return nil, false, fmt.Errorf("save %s: %w", path, err)
	}

	i.logger.Info("imported book", "id", book.ID, "title", book.Title, "file", path)
	return book, true, nil
}

// storeCover writes the cover and its thumbnail. Failures are logged and the
// book is saved without them.
func (i *Importer) storeCover(ctx context.Context, book *store.Book, cover *content.Cover) {
	coverPath, err := i.pipeline.StoreCover(ctx, cover.Data, cover.MediaType, CoverBaseName(book.Title, book.FilePath))
	if err != nil {
		i.logger.Warn("failed to store cover", "file", book.FilePath, "error", err)
		return
	}
	book.CoverPath = coverPath

	thumbPath, err := i.pipeline.StoreThumbnail(ctx, coverPath)
	if err != nil {
		i.logger.Warn("failed to create cover thumbnail", "file", book.FilePath, "error", err)
		return
	}
	book.ThumbnailPath = thumbPath
}

// ImportLibrary scans root and imports every book found. Individual failures
// are counted and logged; only a failed scan or a cancelled context is
// returned as an error.
func (i *Importer) ImportLibrary(ctx context.Context, root string, force bool) (Result, error) {
	var res Result

	paths, err := i.pipeline.Scan(ctx, root)
	if err != nil {
		return res, err
	}
	res.Found = len(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, imported, err := i.ImportFile(ctx, path, force)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			i.logger.Warn("failed to import book", "file", path, "error", err)
		case imported:
			res.Imported++
		default:
			res.Skipped++
		}
	}

	i.logger.Info("library import finished", "root", root,
		"found", res.Found, "imported", res.Imported, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// UseQueue makes SyncLibrary enqueue files instead of importing them inline.
func (i *Importer) UseQueue(q Enqueuer) {
	i.queue = q
}

// SyncLibrary brings the catalogue up to date with root. With a queue
// configured the found files are enqueued; otherwise they are imported
// before returning.
func (i *Importer) SyncLibrary(ctx context.Context, root string, force bool) (Result, error) {
	if i.queue == nil {
		return i.ImportLibrary(ctx, root, force)
	}

	var res Result
	paths, err := i.pipeline.Scan(ctx, root)
	if err != nil {
		return res, err
	}
	res.Found = len(paths)

	ids, err := i.queue.EnqueueImports(ctx, paths, force)
	if err != nil {
		return res, err
	}
	res.Queued = len(ids)

	i.logger.Info("library import queued", "root", root, "found", res.Found, "queued", res.Queued)
	return res, nil
}

// CoverBaseName builds the cover file name of a book from its title and a
// short hash of its path. Books with the same title get distinct names.
func CoverBaseName(title, filePath string) string {
	sum := sha256.Sum256([]byte(filePath))
	return fmt.Sprintf("%s-%x", strings.TrimSpace(title), sum[:4])
}

func bookFromMetadata(meta *content.BookMetadata) *store.Book {
	return &store.Book{
		Title:         meta.Title,
		Authors:       meta.Authors,
		Publishers:    meta.Publishers,
		Subjects:      meta.Subjects,
		PublishedDate: meta.PublishedDate,
		ISBN:          meta.ISBN,
		Language:      meta.Language,
		Description:   meta.Description,
		FilePath:      meta.FilePath,
	}
}
