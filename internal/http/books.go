package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuanying/epubshelf/internal/store"
)

// BookReader is the read side of the catalogue.
type BookReader interface {
	GetBookByID(id uint) (*store.Book, error)
	ListBooks() ([]store.Book, error)
	SearchBooks(query string) ([]store.Book, error)
}

type BooksController struct {
	reader BookReader
	logger *slog.Logger
}

func NewBooksController(reader BookReader, logger *slog.Logger) *BooksController {
	return &BooksController{
		reader: reader,
		logger: logger,
	}
}

// ListBooks returns every book, or the matches of ?q= when given.
// GET /api/books
func (bc *BooksController) ListBooks(c *gin.Context) {
	var (
		books []store.Book
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		books, err = bc.reader.SearchBooks(q)
	} else {
		books, err = bc.reader.ListBooks()
	}
	if err != nil {
		respondInternalError(c, bc.logger, err)
		return
	}
	if books == nil {
		books = []store.Book{}
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

// GetBook returns one book record.
// GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.reader.GetBookByID(id)
	if errors.Is(err, store.ErrBookNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, bc.logger, err)
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}
