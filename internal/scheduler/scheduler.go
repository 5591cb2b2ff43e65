package scheduler

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dealflow/server/internal/snapshot"
)

// Scheduler drives the periodic analytics snapshot job.
type Scheduler struct {
	snapshots    *snapshot.Service
	logger       *logrus.Logger
	stopChan     chan struct{}
	wg           sync.WaitGroup
	jobMutex     sync.Mutex // Ensures sequential job execution
	isStartupRun bool       // Tracks whether we're in startup run
}

// NewScheduler creates a new scheduler
func NewScheduler(snapshots *snapshot.Service, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		snapshots:    snapshots,
		logger:       logger,
		stopChan:     make(chan struct{}),
		isStartupRun: true, // Initialize as true for startup
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.runScheduler()
}

// runScheduler handles all scheduled tasks
func (s *Scheduler) runScheduler() {
	defer s.wg.Done()

	// Run the startup snapshot in a separate goroutine
	go func() {
		s.jobMutex.Lock()
		defer s.jobMutex.Unlock()
		s.logger.Info("Running startup snapshot job")
		s.generateSnapshot(time.Now())
		s.isStartupRun = false // Mark startup as complete
		s.logger.Info("Startup snapshot job completed")
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case t := <-ticker.C:
			s.executeScheduledJobs(t)
		}
	}
}

// executeScheduledJobs runs all jobs that are scheduled for the given time
func (s *Scheduler) executeScheduledJobs(t time.Time) {
	// Skip if we're still running the startup job
	if s.isStartupRun {
		s.logger.Debug("Skipping scheduled jobs while startup is in progress")
		return
	}

	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	s.logger.WithFields(logrus.Fields{
		"hour":   t.Hour(),
		"minute": t.Minute(),
	}).Debug("Checking scheduled jobs")

	// At midnight, seal the previous day's snapshot
	if t.Hour() == 0 && t.Minute() == 0 {
		s.logger.Info("Starting scheduled daily snapshot job")
		s.generateSnapshot(t.AddDate(0, 0, -1))
		s.logger.Info("Completed scheduled daily snapshot job")
	}

	// Refresh today's snapshot on the hour so intraday views stay current
	if t.Minute() == 0 {
		s.logger.Info("Starting hourly snapshot refresh")
		s.generateSnapshot(t)
		s.logger.Info("Completed hourly snapshot refresh")
	}
}

func (s *Scheduler) generateSnapshot(day time.Time) {
	if err := s.snapshots.Generate(day); err != nil {
		s.logger.WithError(err).WithField("date", day.Format("2006-01-02")).Error("Snapshot job failed")
	} else {
		s.logger.WithField("date", day.Format("2006-01-02")).Info("Snapshot job completed successfully")
	}
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
