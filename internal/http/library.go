package http

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuanying/epubshelf/internal/importer"
	"github.com/yuanying/epubshelf/internal/library"
)

// LibrarySyncer imports or enqueues every book under a directory.
type LibrarySyncer interface {
	SyncLibrary(ctx context.Context, root string, force bool) (importer.Result, error)
}

type ScanRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// LibraryController triggers library imports.
type LibraryController struct {
	syncer      LibrarySyncer
	libraryPath string
	logger      *slog.Logger
}

func NewLibraryController(syncer LibrarySyncer, libraryPath string, logger *slog.Logger) *LibraryController {
	return &LibraryController{
		syncer:      syncer,
		libraryPath: libraryPath,
		logger:      logger,
	}
}

// Scan imports the books under the requested path, or the configured
// library when none is given. Returns 202 when the files were queued.
// POST /api/library/scan
func (lc *LibraryController) Scan(c *gin.Context) {
	var req ScanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	root := req.Path
	if root == "" {
		root = lc.libraryPath
	}
	if root == "" {
		respondBadRequest(c, "path is required when no library path is configured")
		return
	}

	res, err := lc.syncer.SyncLibrary(c.Request.Context(), root, req.Force)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, library.ErrNotDirectory) {
		respondBadRequest(c, err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, lc.logger, err)
		return
	}

	status := http.StatusOK
	if res.Queued > 0 {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}
