package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuanying/epubshelf/internal/epub"
	"github.com/yuanying/epubshelf/internal/store"
)

// Renderer renders a book file into one HTML fragment.
type Renderer interface {
	Render(ctx context.Context, path string) (string, error)
}

// ContentController serves the rendered content of books.
type ContentController struct {
	reader   BookReader
	renderer Renderer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewContentController creates a ContentController. A zero timeout waits for
// the render however long it takes.
func NewContentController(reader BookReader, renderer Renderer, timeout time.Duration, logger *slog.Logger) *ContentController {
	return &ContentController{
		reader:   reader,
		renderer: renderer,
		timeout:  timeout,
		logger:   logger,
	}
}

// GetContent renders a book. The HTML is returned as a JSON string, or as
// text/html with ?format=html.
// GET /api/books/:id/content
func (cc *ContentController) GetContent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := cc.reader.GetBookByID(id)
	if errors.Is(err, store.ErrBookNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, cc.logger, err)
		return
	}
	if book.FilePath == "" {
		respondNotFound(c, "book content")
		return
	}

	ctx := c.Request.Context()
	if cc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cc.timeout)
		defer cancel()
	}

	html, err := cc.renderer.Render(ctx, book.FilePath)
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		cc.logger.Warn("render timed out", "book_id", id, "file", book.FilePath, "timeout", cc.timeout)
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "rendering timed out"})
		return
	case errors.Is(err, epub.ErrNotFound):
		respondNotFound(c, "book file")
		return
	default:
		respondInternalError(c, cc.logger, err)
		return
	}

	if c.Query("format") == "html" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
		return
	}
	c.JSON(http.StatusOK, html)
}
