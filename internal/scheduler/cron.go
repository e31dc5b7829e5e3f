package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/amaumene/jellyoff/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron           *cron.Cron
	syncCtrl       *controllers.SyncController
	cleanupCtrl    *controllers.CleanupController
	syncSchedule   string
	verifySchedule string
	logger         *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler. Both schedules are standard
// five-field cron expressions.
func NewScheduler(
	syncCtrl *controllers.SyncController,
	cleanupCtrl *controllers.CleanupController,
	syncSchedule string,
	verifySchedule string,
	logger *logrus.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:           cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		syncCtrl:       syncCtrl,
		cleanupCtrl:    cleanupCtrl,
		syncSchedule:   syncSchedule,
		verifySchedule: verifySchedule,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if _, err := s.cron.AddFunc(s.syncSchedule, s.runSync); err != nil {
		return fmt.Errorf("failed to add sync job: %w", err)
	}

	if _, err := s.cron.AddFunc(s.verifySchedule, s.runVerify); err != nil {
		return fmt.Errorf("failed to add verify job: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"sync":   s.syncSchedule,
		"verify": s.verifySchedule,
	}).Info("Scheduler started")

	// Records left stale while the app was closed are dropped right away
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runVerify()
	}()

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// runSync executes the progress sync job
func (s *Scheduler) runSync() {
	s.logger.Debug("Running scheduled progress sync")

	result, err := s.syncCtrl.SyncUnsynced(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("Sync job failed")
		return
	}
	if result.Offline {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"synced":  result.Synced,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	}).Info("Sync job completed")
}

// runVerify executes the stale download record sweep
func (s *Scheduler) runVerify() {
	s.logger.Debug("Running scheduled download verification")

	if _, err := s.cleanupCtrl.VerifyDownloads(); err != nil {
		s.logger.WithError(err).Error("Verify job failed")
	}
}
