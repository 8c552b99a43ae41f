package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrBookNotFound is returned when no book matches a lookup
var ErrBookNotFound = errors.New("book not found")

// BookRepository handles book database operations
type BookRepository struct {
	db *Database
}

// NewBookRepository creates a new books repository.
func NewBookRepository(db *Database) *BookRepository {
	return &BookRepository{db: db}
}

// GetBookByID retrieves a book by its ID.
func (r *BookRepository) GetBookByID(id uint) (*Book, error) {
	var book Book
	if err := r.db.DB.First(&book, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

// GetBookByFilePath retrieves the book stored at path.
func (r *BookRepository) GetBookByFilePath(path string) (*Book, error) {
	var book Book
	if err := r.db.DB.Where("file_path = ?", path).First(&book).Error; err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

// ListBooks returns every book ordered by title.
func (r *BookRepository) ListBooks() ([]Book, error) {
	var books []Book
	err := r.db.DB.Order("title ASC, id ASC").Find(&books).Error
	return books, err
}

// likeEscaper makes LIKE wildcards in a search query match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchBooks searches books by title, author or ISBN (case-insensitive partial match).
func (r *BookRepository) SearchBooks(query string) ([]Book, error) {
	var books []Book
	searchPattern := "%" + likeEscaper.Replace(query) + "%"
	err := r.db.DB.
		Where(`LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(authors) LIKE LOWER(?) ESCAPE '\' OR LOWER(isbn) LIKE LOWER(?) ESCAPE '\'`,
			searchPattern, searchPattern, searchPattern).
		Order("title ASC, id ASC").
		Find(&books).Error
	return books, err
}

// UpsertBook inserts the book, or updates the existing row with the same
// FilePath. On return book.ID is set.
func (r *BookRepository) UpsertBook(book *Book) error {
	if book.FilePath == "" {
		return errors.New("book has no file path")
	}
	return r.db.write(func(tx *gorm.DB) error {
		var existing Book
		err := tx.Where("file_path = ?", book.FilePath).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			book.ID = 0
			if err := tx.Create(book).Error; err != nil {
				return fmt.Errorf("failed to create book: %w", err)
			}
			return nil
		case err != nil:
			return err
		}

		book.ID = existing.ID
		book.CreatedAt = existing.CreatedAt
		if err := tx.Save(book).Error; err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		return nil
	})
}

// DeleteBook removes a book by ID.
func (r *BookRepository) DeleteBook(id uint) error {
	return r.db.write(func(tx *gorm.DB) error {
		result := tx.Delete(&Book{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrBookNotFound
		}
		return nil
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBookNotFound
	}
	return err
}
