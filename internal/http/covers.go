package http

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/yuanying/epubshelf/internal/store"
)

// CoversController handles book cover requests.
type CoversController struct {
	reader BookReader
	logger *slog.Logger
}

// NewCoversController creates a new CoversController.
func NewCoversController(reader BookReader, logger *slog.Logger) *CoversController {
	return &CoversController{
		reader: reader,
		logger: logger,
	}
}

// GetCover serves the stored cover image. ?size=thumb serves the thumbnail
// when one exists.
// GET /api/books/:id/cover
func (cc *CoversController) GetCover(c *gin.Context) {
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

	path := book.CoverPath
	if c.Query("size") == "thumb" && book.ThumbnailPath != "" {
		path = book.ThumbnailPath
	}
	if path == "" {
		respondNotFound(c, "cover")
		return
	}

	c.File(path)
}
