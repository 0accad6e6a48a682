package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/semmidev/strata/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// UploadTarget is a remote copy destination for produced archives.
type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

// Pool runs submitted jobs in background goroutines, at most workers at a
// time, and reports each outcome on the results channel.
type Pool struct {
	archiver      domain.Archiver
	uploadTargets []UploadTarget
	logger        Logger
	results       chan<- domain.JobResult

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(
	archiver domain.Archiver,
	uploadTargets []UploadTarget,
	workers int,
	results chan<- domain.JobResult,
	logger Logger,
) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		archiver:      archiver,
		uploadTargets: uploadTargets,
		logger:        logger,
		results:       results,
		sem:           semaphore.NewWeighted(int64(workers)),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Submit queues the job and returns immediately. The job keeps running
// after the submitting context is cancelled; only Shutdown stops it.
func (p *Pool) Submit(ctx context.Context, job domain.Job) (domain.JobHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", domain.ErrExecutorClosed
	}

	handle := domain.JobHandle(uuid.NewString())
	p.wg.Add(1)
	go p.run(handle, job)
	return handle, nil
}

func (p *Pool) run(handle domain.JobHandle, job domain.Job) {
	defer p.wg.Done()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.report(domain.JobResult{Handle: handle, Job: job, Err: &domain.ExecutionError{Handle: handle, Stage: "queue", Err: err}})
		return
	}
	defer p.sem.Release(1)

	start := time.Now()
	archive, err := p.execute(handle, job)
	p.report(domain.JobResult{
		Handle:   handle,
		Job:      job,
		Archive:  archive,
		Duration: time.Since(start),
		Err:      err,
	})
}

func (p *Pool) execute(handle domain.JobHandle, job domain.Job) (string, error) {
	id := job.Source.ID

	if len(job.Files) == 0 {
		p.logger.Infof("[%s] No files to archive for %s backup", id, job.Type)
		return "", nil
	}

	p.logger.Infof("[%s] Archiving %d file(s) for %s backup...", id, len(job.Files), job.Type)
	archive, err := p.archiver.Write(p.ctx, domain.ArchiveRequest{
		Origin:      job.Source.Origin,
		Destination: job.Source.Destination,
		Name:        job.ArchiveName(),
		Files:       job.Files,
		EmptyDirs:   job.Type == domain.Full,
	})
	if err != nil {
		return "", &domain.ExecutionError{Handle: handle, Stage: "archive", Err: err}
	}

	if info, err := os.Stat(archive); err == nil {
		p.logger.Infof("[%s] Archive created: %s (%.2f MB)", id, archive, float64(info.Size())/(1024*1024))
	}

	if len(p.uploadTargets) > 0 {
		p.uploadToTargets(id, archive)
	}

	return archive, nil
}

// uploadToTargets mirrors the archive everywhere in parallel. A failed
// mirror is logged; the archive in the destination directory is the
// backup.
func (p *Pool) uploadToTargets(id, archive string) {
	var wg sync.WaitGroup
	name := filepath.Base(archive)

	for _, target := range p.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			p.logger.Infof("[%s] Uploading to %s...", id, t.Name)
			if err := t.Storage.Upload(p.ctx, archive, name); err != nil {
				p.logger.Errorf("[%s] Failed to upload to %s: %v", id, t.Name, err)
			} else {
				p.logger.Infof("[%s] Successfully uploaded to %s", id, t.Name)
			}
		}(target)
	}

	wg.Wait()
}

func (p *Pool) report(res domain.JobResult) {
	select {
	case p.results <- res:
	case <-p.ctx.Done():
		p.logger.Warnf("[%s] Dropping result of job %s after shutdown", res.Job.Source.ID, res.Handle)
	}
}

// Shutdown refuses new jobs and waits for running ones until ctx is done,
// then cancels whatever is left.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}
