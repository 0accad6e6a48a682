package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/semmidev/strata/internal/domain"
)

const (
	// resolutionSlack is subtracted from the clock when a change set is
	// resolved. File mtimes come from a coarser clock than time.Now and can
	// trail it, so a file written right after resolution may carry an
	// earlier stamp.
	resolutionSlack = 2 * time.Second

	notifyTimeout     = 30 * time.Second
	maxPendingNotices = 8
)

// Dispatcher plans and submits the backup jobs of a cycle and advances
// markers when the executor reports success.
type Dispatcher struct {
	sources  []domain.Source
	markers  domain.MarkerStore
	executor domain.Executor
	results  <-chan domain.JobResult
	logger   Logger
	recorder Recorder
	notifier domain.Notifier
	now      func() time.Time

	inflight sync.WaitGroup

	noticeSlots chan struct{}
	notices     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

func WithNotifier(n domain.Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	sources []domain.Source,
	markers domain.MarkerStore,
	executor domain.Executor,
	results <-chan domain.JobResult,
	logger Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		sources:  sources,
		markers:  markers,
		executor: executor,
		results:  results,
		logger:   logger,
		recorder: NopRecorder{},
		now:      time.Now,

		noticeSlots: make(chan struct{}, maxPendingNotices),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Summary counts what a Dispatch call did.
type Summary struct {
	Submitted int
	Skipped   int
}

// Dispatch runs one cycle: for each source in configuration order it
// selects the backup type for the cycle's calendar day, resolves the
// change set and submits a job. It does not wait for jobs to finish.
//
// Problems confined to one source are logged and the source is skipped.
// Only a marker store failure or ctx cancellation is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, cycleAt time.Time) (Summary, error) {
	var sum Summary
	for _, src := range d.sources {
		typ, err := SelectType(src.Override, cycleAt.Weekday())
		if err != nil {
			warning := &domain.ConfigWarning{SourceID: src.ID, Err: err}
			d.logger.Warnf("[%s] %v, applying %s by day-of-week policy", src.ID, warning, typ)
		}

		submitted, err := d.dispatchOne(ctx, src, typ)
		if err != nil {
			return sum, err
		}
		if submitted {
			sum.Submitted++
		} else {
			sum.Skipped++
		}
	}
	return sum, nil
}

// DispatchAll submits a job of every backup type for every source. The
// selector still runs so the policy decision shows up in the log. Used by
// test mode.
func (d *Dispatcher) DispatchAll(ctx context.Context, cycleAt time.Time) (Summary, error) {
	var sum Summary
	for _, src := range d.sources {
		typ, err := SelectType(src.Override, cycleAt.Weekday())
		if err != nil {
			d.logger.Warnf("[%s] %v", src.ID, &domain.ConfigWarning{SourceID: src.ID, Err: err})
		}
		d.logger.Infof("[%s] Policy selects %s on %s, test mode runs every type", src.ID, typ, cycleAt.Weekday())

		for _, t := range domain.BackupTypes {
			submitted, err := d.dispatchOne(ctx, src, t)
			if err != nil {
				return sum, err
			}
			if submitted {
				sum.Submitted++
			} else {
				sum.Skipped++
			}
		}
	}
	return sum, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, src domain.Source, typ domain.BackupType) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	cutoff, err := d.cutoff(ctx, src, typ)
	if err != nil {
		return false, err
	}

	now := d.now()
	resolvedAt := now.Add(-resolutionSlack)
	if cutoff.Present && cutoff.At.After(now) {
		d.logger.Warnf("[%s] %s marker %s is ahead of the clock %s, including every file",
			src.ID, typ, cutoff.At.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		cutoff = domain.Marker{}
	}

	cs, err := Resolve(ctx, src.Origin, typ, cutoff)
	for _, w := range cs.Warnings {
		d.logger.Warnf("[%s] %s traversal: %v", src.ID, typ, w)
	}
	d.recorder.TraversalWarnings(len(cs.Warnings))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		d.logger.Errorf("[%s] Failed to resolve %s change set of %s: %v", src.ID, typ, src.Origin, err)
		return false, nil
	}

	job := domain.Job{
		Source:     src,
		Type:       typ,
		Files:      cs.Files,
		ResolvedAt: resolvedAt,
	}

	d.inflight.Add(1)
	handle, err := d.executor.Submit(ctx, job)
	if err != nil {
		d.inflight.Done()
		d.recorder.JobRejected(typ)
		dispatchErr := &domain.DispatchError{SourceID: src.ID, Type: typ, Err: err}
		d.logger.Errorf("[%s] %v", src.ID, dispatchErr)
		d.notify(ctx, fmt.Sprintf("❌ %v", dispatchErr))
		return false, nil
	}

	d.recorder.JobSubmitted(typ, len(job.Files))
	d.logger.Infof("[%s] Submitted %s job %s with %d file(s), cutoff %s",
		src.ID, typ, handle, len(job.Files), describeMarker(cutoff))
	return true, nil
}

// cutoff is the marker an incremental change set is compared against: the
// most recent successful backup of any type. Corrupt markers read as
// absent, which over-includes.
func (d *Dispatcher) cutoff(ctx context.Context, src domain.Source, typ domain.BackupType) (domain.Marker, error) {
	if typ == domain.Full {
		return domain.Marker{}, nil
	}

	var latest domain.Marker
	for _, t := range domain.BackupTypes {
		m, err := d.markers.Get(ctx, src.ID, t)
		switch {
		case errors.Is(err, domain.ErrMarkerCorrupt):
			d.logger.Warnf("[%s] %s marker unreadable, treating as never backed up: %v", src.ID, t, err)
			m = domain.Marker{}
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Marker{}, ctxErr
			}
			return domain.Marker{}, &domain.FatalError{Op: fmt.Sprintf("read %s marker of %s", t, src.ID), Err: err}
		}
		latest = latest.Latest(m)
	}
	return latest, nil
}

// Run consumes job results until ctx is done or the results channel is
// closed. It returns a *domain.FatalError when a marker cannot be stored.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-d.results:
			if !ok {
				return nil
			}
			if err := d.complete(ctx, res); err != nil {
				return err
			}
		}
	}
}

func (d *Dispatcher) complete(ctx context.Context, res domain.JobResult) error {
	defer d.inflight.Done()

	job := res.Job
	id := job.Source.ID
	d.recorder.JobCompleted(job.Type, res.Succeeded())

	if !res.Succeeded() {
		d.logger.Errorf("[%s] %s job %s failed, marker kept: %v", id, job.Type, res.Handle, res.Err)
		d.notify(ctx, fmt.Sprintf("❌ %s backup of %s failed: %v", job.Type, id, res.Err))
		return nil
	}

	// The resolution instant, not now: files touched while the archive was
	// being written belong to the next incremental.
	if err := d.markers.Set(context.WithoutCancel(ctx), id, job.Type, job.ResolvedAt); err != nil {
		return &domain.FatalError{Op: fmt.Sprintf("store %s marker of %s", job.Type, id), Err: err}
	}
	d.recorder.MarkerAdvanced(job.Type)

	archive := res.Archive
	if archive == "" {
		archive = "no archive, nothing changed"
	}
	d.logger.Infof("[%s] %s job %s done in %s (%s), marker at %s",
		id, job.Type, res.Handle, res.Duration.Round(time.Millisecond), archive,
		job.ResolvedAt.Format(time.RFC3339Nano))
	d.notify(ctx, fmt.Sprintf("✅ %s backup of %s: %d file(s), %s", job.Type, id, len(job.Files), archive))
	return nil
}

// Wait blocks until every submitted job reported back to Run.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// notify sends in the background so a slow notifier never holds up
// result consumption. At most maxPendingNotices are in flight; beyond that
// messages are dropped with a warning.
func (d *Dispatcher) notify(ctx context.Context, message string) {
	if d.notifier == nil {
		return
	}

	select {
	case d.noticeSlots <- struct{}{}:
	default:
		d.logger.Warnf("Notification dropped, %d still pending: %s", maxPendingNotices, message)
		return
	}

	d.notices.Add(1)
	go func() {
		defer func() {
			<-d.noticeSlots
			d.notices.Done()
		}()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := d.notifier.Notify(nctx, message); err != nil {
			d.logger.Warnf("Failed to send notification: %v", err)
		}
	}()
}

// FlushNotifications waits for pending notifications until ctx is done.
func (d *Dispatcher) FlushNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.notices.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func describeMarker(m domain.Marker) string {
	if !m.Present {
		return "none"
	}
	return m.At.Format(time.RFC3339Nano)
}
