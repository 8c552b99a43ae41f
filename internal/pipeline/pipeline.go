package pipeline

import (
	"context"
	"log/slog"

	"github.com/yuanying/epubshelf/internal/content"
	"github.com/yuanying/epubshelf/internal/covers"
	"github.com/yuanying/epubshelf/internal/library"
	"github.com/yuanying/epubshelf/internal/worker"
)

// Options holds options for the content pipeline.
type Options struct {
	CoversDir      string
	ThumbnailWidth int // 0 disables thumbnails
	PoolSize       int // 0 uses runtime.NumCPU()
}

// Pipeline is the entry point for every blocking book operation. Each call
// runs on the bounded worker pool and the caller only waits for the result.
type Pipeline struct {
	pool        *worker.Pool
	renderer    *content.Renderer
	extractor   *content.Extractor
	persister   *covers.Persister
	thumbnailer *covers.Thumbnailer
	scanner     *library.Scanner
}

// New creates a pipeline with its own worker pool.
func New(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		pool:      worker.NewPool(opts.PoolSize),
		renderer:  content.NewRenderer(logger.With("component", "renderer")),
		extractor: content.NewExtractor(logger.With("component", "extractor")),
		persister: covers.NewPersister(opts.CoversDir),
		scanner:   library.NewScanner(logger.With("component", "scanner")),
	}
	if opts.ThumbnailWidth > 0 {
		p.thumbnailer = covers.NewThumbnailer(opts.ThumbnailWidth)
	}
	return p
}

// Render renders the book at path into one HTML fragment.
func (p *Pipeline) Render(ctx context.Context, path string) (string, error) {
	return worker.Do(ctx, p.pool, func() (string, error) {
		return p.renderer.Render(path)
	})
}

// Extract reads the bibliographic metadata of the book at path.
func (p *Pipeline) Extract(ctx context.Context, path string) (*content.BookMetadata, error) {
	return worker.Do(ctx, p.pool, func() (*content.BookMetadata, error) {
		return p.extractor.Extract(path)
	})
}

// StoreCover writes a cover image and returns its path.
func (p *Pipeline) StoreCover(ctx context.Context, data []byte, mediaType, baseFilename string) (string, error) {
	return worker.Do(ctx, p.pool, func() (string, error) {
		return p.persister.Store(data, mediaType, baseFilename)
	})
}

// StoreThumbnail creates the thumbnail of a stored cover. It returns an
// empty path when thumbnails are disabled.
func (p *Pipeline) StoreThumbnail(ctx context.Context, coverPath string) (string, error) {
	if p.thumbnailer == nil {
		return "", nil
	}
	return worker.Do(ctx, p.pool, func() (string, error) {
		return p.thumbnailer.StoreThumbnail(coverPath)
	})
}

// Scan lists the book files under root.
func (p *Pipeline) Scan(ctx context.Context, root string) ([]string, error) {
	return worker.Do(ctx, p.pool, func() ([]string, error) {
		return p.scanner.Scan(root)
	})
}

// CoversDir returns the directory covers are written to.
func (p *Pipeline) CoversDir() string {
	return p.persister.Dir()
}

// Wait blocks until all running jobs have finished.
func (p *Pipeline) Wait() {
	p.pool.Wait()
}
