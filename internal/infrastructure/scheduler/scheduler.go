package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs jobs on cron schedules. A job still running when its next
// tick arrives is skipped, so a slow poll never overlaps the next one.
// Errors returned by jobs are published on Errors.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	errs   chan error
}

func New(logger cron.Logger) *Scheduler {
	if logger == nil {
		logger = cron.DiscardLogger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
		errs:   make(chan error, 1),
	}
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			s.publish(err)
		}
	})
	return err
}

// Every runs job at a fixed interval. Intervals are rounded up to whole
// seconds by cron.
func (s *Scheduler) Every(interval time.Duration, job func(context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %s", interval)
	}
	return s.AddJob("@every "+interval.String(), job)
}

// Errors delivers job errors. Only the first unread error is kept.
func (s *Scheduler) Errors() <-chan error {
	return s.errs
}

func (s *Scheduler) publish(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels the context handed to running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
