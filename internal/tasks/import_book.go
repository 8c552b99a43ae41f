package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/yuanying/epubshelf/internal/store"
)

// FileImporter imports a single book file.
type FileImporter interface {
	ImportFile(ctx context.Context, path string, force bool) (*store.Book, bool, error)
}

// ImportBookTask imports one book file into the catalogue.
type ImportBookTask struct {
	Path  string `json:"path"`
	Force bool   `json:"force"`
}

// Config returns the queue configuration for import tasks.
func (t ImportBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_book",
		MaxAttempts: 2,
		Backoff:     30 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ImportBookProcessor creates a processor function for ImportBookTask.
func ImportBookProcessor(importer FileImporter, logger *slog.Logger) backlite.QueueProcessor[ImportBookTask] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, task ImportBookTask) error {
		if importer == nil {
			return fmt.Errorf("importer not configured")
		}

		book, imported, err := importer.ImportFile(ctx, task.Path, task.Force)
		if err != nil {
			return fmt.Errorf("import %s: %w", task.Path, err)
		}

		if imported {
			logger.Info("task imported book", "id", book.ID, "title", book.Title, "file", task.Path)
		} else {
			logger.Debug("task skipped book already in catalogue", "file", task.Path)
		}
		return nil
	}
}

// NewImportBookQueue creates a backlite queue for import tasks.
func NewImportBookQueue(importer FileImporter, logger *slog.Logger) backlite.Queue {
	return backlite.NewQueue(ImportBookProcessor(importer, logger))
}

// EnqueueImports adds one import task per path and returns the task IDs.
func (c *Client) EnqueueImports(ctx context.Context, paths []string, force bool) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	tasks := make([]backlite.Task, len(paths))
	for i, p := range paths {
		tasks[i] = ImportBookTask{Path: p, Force: force}
	}
	ids, err := c.Add(tasks...).Ctx(ctx).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue imports: %w", err)
	}
	return ids, nil
}
