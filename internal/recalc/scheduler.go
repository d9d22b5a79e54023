package recalc

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/atila/internal/config"
	"github.com/zulandar/atila/internal/logging"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules until its context is cancelled.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
}

// NewScheduler creates a Scheduler whose jobs receive ctx.
func NewScheduler(ctx context.Context, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(config.CronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  logging.WithComponent(logging.OrNop(log), "scheduler"),
		ctx:  ctx,
	}
}

// Add registers job under name on a 5-field cron spec. The spec "off" or ""
// registers nothing.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" || spec == "off" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			s.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("recalc: schedule %s %q: %w", name, spec, err)
	}
	s.log.Info("scheduled job", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Run starts the scheduler and blocks until ctx is cancelled, then waits
// for running jobs to finish.
func (s *Scheduler) Run() {
	s.cron.Start()
	<-s.ctx.Done()
	<-s.cron.Stop().Done()
}

// AllJob adapts Recalculator.All to a Job.
func (r *Recalculator) AllJob() Job {
	return func(ctx context.Context) error {
		_, err := r.All(ctx)
		return err
	}
}
