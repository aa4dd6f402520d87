package service

import (
	"log/slog"
	"time"

	"github.com/corvid-labs/facegate/internal/auth/session"
)

// sweeper is implemented by tracker drivers that need periodic reaping.
// The redis driver relies on key TTLs instead and does not implement it.
type sweeper interface {
	Sweep() int
}

// HousekeepingService periodically reaps expired attempts and sessions from
// the tracker so abandoned logins don't accumulate between lookups.
type HousekeepingService struct {
	Tracker  session.Tracker
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 5 minutes.
func NewHousekeepingService(tracker session.Tracker, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &HousekeepingService{
		Tracker:  tracker,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut it
// down gracefully.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	sw, ok := s.Tracker.(sweeper)
	if !ok {
		return // backend expires records on its own
	}
	if removed := sw.Sweep(); removed > 0 {
		s.Logger.Debug("reaped expired tracker records", "removed", removed)
	}
}
