package entrypoint

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanying/epubshelf/internal/config"
	"github.com/yuanying/epubshelf/internal/epub/epubtest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	library := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(library, 0o755))

	return &config.Config{
		HTTP:     config.HTTP{Host: "127.0.0.1"},
		Global:   config.Global{ShutdownTimeoutInSeconds: 2},
		Database: config.Database{Path: filepath.Join(dir, "data", "books.db")},
		Library:  config.Library{Path: library, ScanSchedule: "0 * * * *"},
		Covers:   config.Covers{Dir: filepath.Join(dir, "covers"), ThumbnailWidth: 0},
		Pipeline: config.Pipeline{PoolSize: 2, RenderTimeout: 10 * time.Second},
		Tasks: config.Tasks{
			Enabled:         true,
			Workers:         1,
			ReleaseAfter:    time.Minute,
			CleanupInterval: time.Hour,
		},
	}
}

func sampleBook(title string) epubtest.Book {
	return epubtest.Book{
		Metadata: `<dc:title>` + title + `</dc:title>`,
		Items: []epubtest.Item{
			{ID: "ch1", Href: "ch1.xhtml", MediaType: "application/xhtml+xml", Body: epubtest.XHTML("<p>" + title + "</p>")},
		},
		Spine: []string{"ch1"},
	}
}

func TestNewApp_TasksDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tasks.Enabled = false

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Tasks)
	assert.Nil(t, app.Scheduler)

	sampleBook("Inline").Write(t, cfg.Library.Path, "inline.epub")
	res, err := app.Importer.SyncLibrary(context.Background(), cfg.Library.Path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Zero(t, res.Queued)
}

func TestNewApp_ScanRequiresLibraryPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Library.ScanEnabled = true
	cfg.Library.Path = ""

	_, err := NewApp(cfg, quietLogger())
	assert.Error(t, err)
}

func TestApp_QueuedImport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Library.ScanEnabled = true

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Tasks)
	require.NotNil(t, app.Scheduler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, app.Start(ctx))
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		app.Stop(stopCtx)
	}()
	assert.True(t, app.Scheduler.IsRunning())

	path := sampleBook("Queued").Write(t, cfg.Library.Path, "queued.epub")
	res, err := app.Importer.SyncLibrary(ctx, cfg.Library.Path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Queued)

	assert.Eventually(t, func() bool {
		_, err := app.Books.GetBookByFilePath(path)
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)
}

func TestApp_Router(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.Tasks.Enabled = false

	app, err := NewApp(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()

	sampleBook("Routed").Write(t, cfg.Library.Path, "routed.epub")
	router := app.Router("test")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/library/scan", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	books, err := app.Books.ListBooks()
	require.NoError(t, err)
	require.Len(t, books, 1)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func freePort(t *testing.T) int32 {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return int32(l.Addr().(*net.TCPAddr).Port)
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Port = freePort(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ctx, cancel := context.WithCancel(context.Background())
	shutdownCalled := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, handler, cfg, quietLogger(), func(context.Context) { close(shutdownCalled) })
	}()

	url := "http://" + net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(int(cfg.HTTP.Port)))
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	select {
	case <-shutdownCalled:
	default:
		t.Error("shutdown callback was not called")
	}
}

func TestServe_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig(t)
	cfg.HTTP.Port = int32(l.Addr().(*net.TCPAddr).Port)

	err = Serve(context.Background(), http.NotFoundHandler(), cfg, quietLogger(), nil)
	assert.Error(t, err)
}
