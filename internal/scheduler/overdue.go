// Package scheduler runs the periodic overdue loan scan on a cron
// cadence, enqueueing the scan onto the task queue so it executes with
// the same retry and retention semantics as any other background job.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openshelf/librarian/internal/config"
	"github.com/openshelf/librarian/internal/tasks"
)

// OverdueScanScheduler enqueues an overdue scan task on a schedule.
type OverdueScanScheduler struct {
	taskClient *tasks.Client
	config     config.OverdueScan

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewOverdueScanScheduler creates a scheduler instance.
func NewOverdueScanScheduler(taskClient *tasks.Client, cfg config.OverdueScan) *OverdueScanScheduler {
	return &OverdueScanScheduler{
		taskClient: taskClient,
		config:     cfg,
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if the overdue scan is enabled.
func (s *OverdueScanScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("Overdue scan scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.enqueueScan()
	})
	if err != nil {
		return fmt.Errorf("invalid overdue scan schedule '%s': %w", s.config.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Overdue scan scheduler: started with schedule '%s'", s.config.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job to
// complete.
func (s *OverdueScanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	log.Printf("Overdue scan scheduler: stopped")
}

// RunNow enqueues an immediate overdue scan.
func (s *OverdueScanScheduler) RunNow() error {
	_, err := s.taskClient.Add(tasks.OverdueScanTask{AsOf: time.Now()}).Save()
	return err
}

// IsRunning returns whether the scheduler is active.
func (s *OverdueScanScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next scan will be enqueued.
func (s *OverdueScanScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *OverdueScanScheduler) enqueueScan() {
	if _, err := s.taskClient.Add(tasks.OverdueScanTask{AsOf: time.Now()}).Save(); err != nil {
		log.Printf("Overdue scan scheduler: failed to enqueue scan: %v", err)
		return
	}
	log.Printf("Overdue scan scheduler: scan enqueued")
}
