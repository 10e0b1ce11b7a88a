package scheduler

import (
	"context"
	"fmt"
	"time"

	"summercamp_backend/internal/camps/domain"
	"summercamp_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

const defaultSweepSpec = "@every 1h"

// UpcomingCampLister lists camps whose registration has not opened yet.
type UpcomingCampLister interface {
	ListUpcoming(ctx context.Context, now time.Time) ([]domain.Camp, error)
}

// ScheduleSweep periodically reschedules upcoming camps that lost their
// pending jobs, e.g. after the queue's Redis was flushed.
type ScheduleSweep struct {
	camps      UpcomingCampLister
	jobs       JobStore
	milestones *MilestoneScheduler
	cron       *cron.Cron
	spec       string
	log        *logger.Logger
	now        func() time.Time
}

func NewScheduleSweep(camps UpcomingCampLister, jobs JobStore, milestones *MilestoneScheduler, spec string, log *logger.Logger) *ScheduleSweep {
	if spec == "" {
		spec = defaultSweepSpec
	}
	return &ScheduleSweep{
		camps:      camps,
		jobs:       jobs,
		milestones: milestones,
		cron:       cron.New(),
		spec:       spec,
		log:        log,
		now:        time.Now,
	}
}

// Run starts the cron schedule and blocks until ctx is done.
func (s *ScheduleSweep) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Warn("schedule sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("adding schedule sweep %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info("schedule sweep started", "spec", s.spec)

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("schedule sweep stopped")
	return nil
}

// Sweep reschedules every upcoming camp without pending jobs and returns
// how many camps were rescheduled. One camp failing does not stop the sweep.
func (s *ScheduleSweep) Sweep(ctx context.Context) (int, error) {
	camps, err := s.camps.ListUpcoming(ctx, s.now())
	if err != nil {
		return 0, err
	}

	rescheduled := 0
	for _, camp := range camps {
		pending, err := s.jobs.CountPending(ctx, camp.ID)
		if err != nil {
			s.log.WithCamp(camp.ID).Warn("schedule sweep: pending count failed", "error", err)
			continue
		}
		if pending > 0 {
			continue
		}
		if _, err := s.milestones.ScheduleJobsForCamp(ctx, camp.ID); err != nil {
			s.log.WithCamp(camp.ID).Warn("schedule sweep: reschedule failed", "error", err)
			continue
		}
		rescheduled++
	}

	if rescheduled > 0 {
		s.log.Info("schedule sweep rescheduled camps", "count", rescheduled)
	}
	return rescheduled, nil
}
