package updater

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "dutycal/internal/log"
)

// Refresher refreshes the airport reference data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs roster updates and airport refreshes on cron schedules.
// A job still running when its next tick arrives skips that tick.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	updater *Updater
	airport Refresher

	updateSpec  string
	airportSpec string
}

// NewScheduler validates both specs (standard five-field cron syntax).
func NewScheduler(u *Updater, airports Refresher, updateSpec, airportSpec string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(updateSpec); err != nil {
		return nil, fmt.Errorf("update schedule %q: %w", updateSpec, err)
	}
	if _, err := cron.ParseStandard(airportSpec); err != nil {
		return nil, fmt.Errorf("airport schedule %q: %w", airportSpec, err)
	}
	return &Scheduler{
		updater:     u,
		airport:     airports,
		updateSpec:  updateSpec,
		airportSpec: airportSpec,
	}, nil
}

// Start registers the jobs and starts the cron loop. Jobs receive a
// context cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(s.updateSpec, func() { s.runUpdate(ctx) }); err != nil {
		cancel()
		return err
	}
	if _, err := c.AddFunc(s.airportSpec, func() { s.runAirports(ctx) }); err != nil {
		cancel()
		return err
	}

	s.cron = c
	s.cancel = cancel
	c.Start()
	appLog.Info("scheduler started", "update", s.updateSpec, "airports", s.airportSpec)
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Scheduler) runUpdate(ctx context.Context) {
	if _, err := s.updater.RunOnce(ctx); err != nil {
		appLog.Error("scheduled update failed", err)
	}
}

// runAirports keeps the stored dataset when the download fails.
func (s *Scheduler) runAirports(ctx context.Context) {
	if s.airport == nil {
		return
	}
	if err := s.airport.Refresh(ctx); err != nil {
		appLog.Error("airport refresh failed, keeping stored data", err)
	}
}
