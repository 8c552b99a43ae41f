package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuanying/epubshelf/internal/config"
	http_controllers "github.com/yuanying/epubshelf/internal/http"
	"github.com/yuanying/epubshelf/internal/importer"
	"github.com/yuanying/epubshelf/internal/pipeline"
	"github.com/yuanying/epubshelf/internal/scheduler"
	"github.com/yuanying/epubshelf/internal/store"
	"github.com/yuanying/epubshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds the process-wide services. Tasks and Scheduler are nil when
// disabled in the configuration.
type App struct {
	Config    *config.Config
	DB        *store.Database
	Books     *store.BookRepository
	Pipeline  *pipeline.Pipeline
	Importer  *importer.Importer
	Tasks     *tasks.Client
	Scheduler *scheduler.LibraryScanScheduler

	logger      *slog.Logger
	stopWorkers context.CancelFunc
}

// NewApp opens the database and builds every service described by cfg.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := store.NewDatabase(cfg.Database.Path, store.Options{})
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Books:  store.NewBookRepository(db),
		Pipeline: pipeline.New(pipeline.Options{
			CoversDir:      cfg.Covers.Dir,
			ThumbnailWidth: cfg.Covers.ThumbnailWidth,
			PoolSize:       cfg.Pipeline.PoolSize,
		}, logger),
		logger: logger,
	}
	app.Importer = importer.New(app.Pipeline, app.Books, logger.With("component", "importer"))

	if cfg.Tasks.Enabled {
		app.Tasks, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}, logger.With("component", "tasks"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		app.Tasks.Register(tasks.NewImportBookQueue(app.Importer, logger.With("component", "tasks")))
		app.Importer.UseQueue(app.Tasks)
	}

	if cfg.Library.ScanEnabled {
		if cfg.Library.Path == "" {
			app.Close()
			return nil, fmt.Errorf("LIBRARY_SCAN_ENABLED requires LIBRARY_PATH")
		}
		app.Scheduler = scheduler.NewLibraryScanScheduler(app.Importer, cfg.Library.Path,
			cfg.Library.ScanSchedule, logger.With("component", "scheduler"))
	}

	return app, nil
}

// Start launches the task workers and the library scan scheduler.
func (a *App) Start(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(ctx)
	a.stopWorkers = cancel

	if a.Tasks != nil {
		a.Tasks.Start(workerCtx)
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(workerCtx); err != nil {
			return fmt.Errorf("failed to start library scan scheduler: %w", err)
		}
	}
	return nil
}

// Stop shuts the background workers down, waiting at most until ctx is done.
func (a *App) Stop(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Tasks != nil {
		a.Tasks.Stop(ctx)
	}
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
	a.Pipeline.Wait()
}

// Close releases the databases.
func (a *App) Close() error {
	var errs []error
	if a.Tasks != nil {
		errs = append(errs, a.Tasks.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}

// Router builds the HTTP API for the app.
func (a *App) Router(version string) *gin.Engine {
	return http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:      a.DB,
		Books:         a.Books,
		Renderer:      a.Pipeline,
		Syncer:        a.Importer,
		LibraryPath:   a.Config.Library.Path,
		RenderTimeout: a.Config.Pipeline.RenderTimeout,
		Version:       version,
		Logger:        a.logger.With("component", "http"),
	})
}

// Serve runs the HTTP server until ctx is cancelled or the process receives
// SIGINT/SIGTERM, then shuts down gracefully.
func Serve(ctx context.Context, router http.Handler, cfg *config.Config, logger *slog.Logger, onShutdown ShutdownFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server", "timeout", timeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work first so no new imports start during shutdown
	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

// Run builds the app from cfg and serves the HTTP API until interrupted.
func Run(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("starting epubshelf", "version", version)

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("error closing databases", "error", err)
		}
	}()

	if err := app.Start(ctx); err != nil {
		app.Stop(ctx)
		return err
	}

	return Serve(ctx, app.Router(version), cfg, logger, app.Stop)
}
