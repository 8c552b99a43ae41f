package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "data", "test.db"), Options{LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBookRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBookRepository(db)

	book := &Book{
		Title:      "The Go Programming Language",
		Authors:    []string{"Alan Donovan", "Brian Kernighan"},
		Publishers: []string{"Addison-Wesley"},
		ISBN:       "urn:isbn:9780134190440",
		FilePath:   "/library/gopl.epub",
	}

	t.Run("UpsertBook creates new book", func(t *testing.T) {
		require.NoError(t, repo.UpsertBook(book))
		assert.NotZero(t, book.ID)
	})

	t.Run("GetBookByID retrieves saved book", func(t *testing.T) {
		got, err := repo.GetBookByID(book.ID)
		require.NoError(t, err)
		assert.Equal(t, book.Title, got.Title)
		assert.Equal(t, []string{"Alan Donovan", "Brian Kernighan"}, got.Authors)
		assert.Equal(t, []string{"Addison-Wesley"}, got.Publishers)
	})

	t.Run("GetBookByFilePath retrieves saved book", func(t *testing.T) {
		got, err := repo.GetBookByFilePath("/library/gopl.epub")
		require.NoError(t, err)
		assert.Equal(t, book.ID, got.ID)
	})

	t.Run("UpsertBook updates by file path", func(t *testing.T) {
		updated := &Book{
			Title:      "The Go Programming Language (2nd printing)",
			Authors:    []string{"Alan Donovan"},
			Publishers: []string{"Addison-Wesley"},
			FilePath:   "/library/gopl.epub",
			CoverPath:  "covers/gopl.jpg",
		}
		require.NoError(t, repo.UpsertBook(updated))
		assert.Equal(t, book.ID, updated.ID)

		books, err := repo.ListBooks()
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "The Go Programming Language (2nd printing)", books[0].Title)
		assert.True(t, books[0].HasCover())
		assert.Equal(t, book.CreatedAt.Unix(), books[0].CreatedAt.Unix())
	})

	t.Run("SearchBooks matches title, author and ISBN", func(t *testing.T) {
		require.NoError(t, repo.UpsertBook(&Book{
			Title:    "Concurrency in Go",
			Authors:  []string{"Katherine Cox-Buday"},
			FilePath: "/library/cig.epub",
		}))

		byTitle, err := repo.SearchBooks("concurrency")
		require.NoError(t, err)
		require.Len(t, byTitle, 1)
		assert.Equal(t, "Concurrency in Go", byTitle[0].Title)

		byAuthor, err := repo.SearchBooks("DONOVAN")
		require.NoError(t, err)
		require.Len(t, byAuthor, 1)
		assert.Equal(t, book.ID, byAuthor[0].ID)

		both, err := repo.SearchBooks("go")
		require.NoError(t, err)
		assert.Len(t, both, 2)

		none, err := repo.SearchBooks("rust")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("DeleteBook removes book", func(t *testing.T) {
		require.NoError(t, repo.DeleteBook(book.ID))
		_, err := repo.GetBookByID(book.ID)
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.ErrorIs(t, repo.DeleteBook(book.ID), ErrBookNotFound)
	})
}

func TestBookRepository_SearchTreatsWildcardsLiterally(t *testing.T) {
	repo := NewBookRepository(setupTestDB(t))
	require.NoError(t, repo.UpsertBook(&Book{Title: "100% Go", FilePath: "/library/percent.epub"}))
	require.NoError(t, repo.UpsertBook(&Book{Title: "snake_case style", FilePath: "/library/snake.epub"}))
	require.NoError(t, repo.UpsertBook(&Book{Title: "Plain Title", FilePath: "/library/plain.epub"}))

	percent, err := repo.SearchBooks("%")
	require.NoError(t, err)
	require.Len(t, percent, 1)
	assert.Equal(t, "100% Go", percent[0].Title)

	underscore, err := repo.SearchBooks("_")
	require.NoError(t, err)
	require.Len(t, underscore, 1)
	assert.Equal(t, "snake_case style", underscore[0].Title)

	backslash, err := repo.SearchBooks(`\`)
	require.NoError(t, err)
	assert.Empty(t, backslash)
}

func TestBookRepository_NotFound(t *testing.T) {
	repo := NewBookRepository(setupTestDB(t))

	_, err := repo.GetBookByID(42)
	assert.ErrorIs(t, err, ErrBookNotFound)

	_, err = repo.GetBookByFilePath("/nope.epub")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookRepository_UpsertRequiresFilePath(t *testing.T) {
	repo := NewBookRepository(setupTestDB(t))
	assert.Error(t, repo.UpsertBook(&Book{Title: "No path"}))
}

func TestBookRepository_ConcurrentUpserts(t *testing.T) {
	repo := NewBookRepository(setupTestDB(t))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.UpsertBook(&Book{Title: "Same", FilePath: "/library/same.epub", Authors: []string{"A"}})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	books, err := repo.ListBooks()
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestDatabase_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(t.Context()))
}
