package usecase

import (
	"context"
	"time"
)

// Cycle ties the trigger to the dispatcher. Tick is called on every poll.
type Cycle struct {
	trigger    *Trigger
	dispatcher *Dispatcher
	logger     Logger
	recorder   Recorder
}

func NewCycle(trigger *Trigger, dispatcher *Dispatcher, logger Logger, recorder Recorder) *Cycle {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Cycle{
		trigger:    trigger,
		dispatcher: dispatcher,
		logger:     logger,
		recorder:   recorder,
	}
}

// Tick fires a cycle when the trigger says so. The returned error is fatal.
func (c *Cycle) Tick(ctx context.Context, now time.Time) error {
	if !c.trigger.Poll(now) {
		return nil
	}
	defer c.trigger.Complete()

	c.recorder.CycleFired()
	c.logger.Infof("=== Backup cycle for %s (%s) ===", now.Format(time.DateOnly), now.Weekday())

	sum, err := c.dispatcher.Dispatch(ctx, now)
	if err != nil {
		return err
	}

	c.logger.Infof("Cycle dispatched: %d job(s) submitted, %d source(s) skipped", sum.Submitted, sum.Skipped)
	return nil
}

// RunOnce dispatches every backup type for every source immediately and
// waits for all jobs to report. Used by test mode, which bypasses the
// time-of-day check.
func (c *Cycle) RunOnce(ctx context.Context, now time.Time) error {
	c.recorder.CycleFired()
	c.logger.Infof("=== Test cycle for %s (%s) ===", now.Format(time.DateOnly), now.Weekday())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- c.dispatcher.Run(runCtx) }()

	sum, err := c.dispatcher.DispatchAll(ctx, now)
	if err != nil {
		return err
	}
	c.logger.Infof("Test cycle dispatched: %d job(s) submitted, %d skipped", sum.Submitted, sum.Skipped)

	drained := make(chan struct{})
	go func() {
		c.dispatcher.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case err := <-runErr:
		if err != nil {
			return err
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
