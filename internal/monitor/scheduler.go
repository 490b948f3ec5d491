package monitor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DefaultSchedule runs a sweep every five minutes
const DefaultSchedule = "0 */5 * * * *"

// Scheduler runs the sweeper on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	ctx     context.Context
}

// NewScheduler registers the sweep under spec, a six-field cron expression
func NewScheduler(ctx context.Context, sweeper *Sweeper, spec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		ctx:     ctx,
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("register monitor sweep: %w", err)
	}
	return s, nil
}

func (s *Scheduler) sweep() {
	if _, err := s.sweeper.Run(s.ctx); err != nil {
		log.WithError(err).Error("monitor sweep failed")
	}
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	log.Info("monitor scheduler started")
	<-ctx.Done()
	<-s.cron.Stop().Done()
	log.Info("monitor scheduler stopped")
	return nil
}

// RunNow executes one sweep immediately
func (s *Scheduler) RunNow() {
	s.sweep()
}
