package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds the dependencies of the HTTP API.
type RouterConfig struct {
	Database      Pinger
	Books         BookReader
	Renderer      Renderer
	Syncer        LibrarySyncer // nil disables POST /api/library/scan
	LibraryPath   string
	RenderTimeout time.Duration
	Version       string
	Logger        *slog.Logger
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	booksController := NewBooksController(cfg.Books, logger)
	contentController := NewContentController(cfg.Books, cfg.Renderer, cfg.RenderTimeout, logger)
	coversController := NewCoversController(cfg.Books, logger)

	router.GET("/health", health.Status)

	api := router.Group("/api")
	api.GET("/books", booksController.ListBooks)
	api.GET("/books/:id", booksController.GetBook)
	api.GET("/books/:id/content", contentController.GetContent)
	api.GET("/books/:id/cover", coversController.GetCover)

	if cfg.Syncer != nil {
		libraryController := NewLibraryController(cfg.Syncer, cfg.LibraryPath, logger)
		api.POST("/library/scan", libraryController.Scan)
	}

	return router
}
