// Package scheduler runs the periodic library scan.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yuanying/epubshelf/internal/importer"
)

// DefaultSchedule scans the library at the top of every hour.
const DefaultSchedule = "0 * * * *"

// scanTimeout bounds a single scheduled scan.
const scanTimeout = 30 * time.Minute

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// LibrarySyncer brings the catalogue up to date with a library directory.
type LibrarySyncer interface {
	SyncLibrary(ctx context.Context, root string, force bool) (importer.Result, error)
}

// LibraryScanScheduler manages periodic scans of the library directory
type LibraryScanScheduler struct {
	syncer   LibrarySyncer
	root     string
	schedule string
	logger   *slog.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	lastResult *importer.Result
	lastErr    error
	lastRunAt  time.Time
}

// NewLibraryScanScheduler creates a new scheduler instance. An empty schedule
// uses DefaultSchedule.
func NewLibraryScanScheduler(syncer LibrarySyncer, root, schedule string, logger *slog.Logger) *LibraryScanScheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LibraryScanScheduler{
		syncer:   syncer,
		root:     root,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// ValidateSchedule checks a standard five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start begins the scheduler. It stops when ctx is cancelled.
func (s *LibraryScanScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if s.root == "" {
		return fmt.Errorf("library path not configured")
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runScan(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule library scan: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	var next time.Time
	if e := s.cron.Entry(entryID); e.Valid() {
		next = e.Next
	}
	s.logger.Info("library scan scheduler started", "schedule", s.schedule, "root", s.root, "next_run", next)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running scan to finish.
func (s *LibraryScanScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cron.Remove(s.entryID)
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	<-stopCtx.Done()
	s.logger.Info("library scan scheduler stopped")
}

// RunNow triggers an immediate scan in the background.
func (s *LibraryScanScheduler) RunNow(ctx context.Context) {
	go s.runScan(ctx)
}

// IsRunning returns whether the scheduler is active
func (s *LibraryScanScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing returns whether a scan is currently in progress
func (s *LibraryScanScheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// NextRunTime returns when the next scan will occur, or nil when stopped.
func (s *LibraryScanScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	e := s.cron.Entry(s.entryID)
	if !e.Valid() {
		return nil
	}
	t := e.Next
	return &t
}

// LastResult returns the outcome of the most recent completed scan.
func (s *LibraryScanScheduler) LastResult() (*importer.Result, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResult, s.lastRunAt, s.lastErr
}

func (s *LibraryScanScheduler) runScan(parent context.Context) {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.logger.Info("library scan skipped, previous scan still running")
		return
	}
	s.isSyncing = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, scanTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.syncer.SyncLibrary(ctx, s.root, false)
	if err != nil {
		s.logger.Error("library scan failed", "root", s.root, "error", err)
	} else {
		s.logger.Info("library scan finished", "root", s.root,
			"found", res.Found, "queued", res.Queued, "imported", res.Imported,
			"failed", res.Failed, "duration", time.Since(start).Round(time.Millisecond))
	}

	s.mu.Lock()
	s.isSyncing = false
	s.lastRunAt = start
	s.lastErr = err
	if err == nil {
		s.lastResult = &res
	}
	s.mu.Unlock()
}
