package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/semmidev/strata/internal/domain"
)

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
	warns []string
	errs  []string
}

func (l *recordingLogger) Infof(template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(template, args...))
}

func (l *recordingLogger) Warnf(template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(template, args...))
}

func (l *recordingLogger) Errorf(template string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, fmt.Sprintf(template, args...))
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (l *recordingLogger) errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}

type memMarkers struct {
	mu      sync.Mutex
	values  map[string]time.Time
	corrupt map[string]bool
	getErr  error
	setErr  error
	sets    int
}

func newMemMarkers() *memMarkers {
	return &memMarkers{values: map[string]time.Time{}, corrupt: map[string]bool{}}
}

func memKey(id string, t domain.BackupType) string {
	return id + "." + t.String()
}

func (m *memMarkers) Get(_ context.Context, id string, t domain.BackupType) (domain.Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Marker{}, m.getErr
	}
	if m.corrupt[memKey(id, t)] {
		return domain.Marker{}, fmt.Errorf("%s: %w", memKey(id, t), domain.ErrMarkerCorrupt)
	}
	at, ok := m.values[memKey(id, t)]
	if !ok {
		return domain.Marker{}, nil
	}
	return domain.MarkerAt(at), nil
}

func (m *memMarkers) Set(_ context.Context, id string, t domain.BackupType, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	k := memKey(id, t)
	if cur, ok := m.values[k]; ok && !at.After(cur) {
		return nil
	}
	m.values[k] = at
	delete(m.corrupt, k)
	m.sets++
	return nil
}

func (m *memMarkers) Close() error { return nil }

func (m *memMarkers) get(id string, t domain.BackupType) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.values[memKey(id, t)]
	return at, ok
}

// fakeExecutor records submitted jobs. Completion is driven by the test
// through finish.
type fakeExecutor struct {
	mu      sync.Mutex
	jobs    []domain.Job
	handles []domain.JobHandle
	reject  map[string]bool
	results chan domain.JobResult
	// autoComplete reports every job right away with this error (nil = success).
	autoComplete bool
	autoErr      error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{reject: map[string]bool{}, results: make(chan domain.JobResult, 64)}
}

func (e *fakeExecutor) Submit(_ context.Context, job domain.Job) (domain.JobHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.reject[job.Source.ID] {
		return "", errors.New("queue unavailable")
	}
	handle := domain.JobHandle(fmt.Sprintf("job-%d", len(e.jobs)+1))
	e.jobs = append(e.jobs, job)
	e.handles = append(e.handles, handle)
	if e.autoComplete {
		e.results <- domain.JobResult{Handle: handle, Job: job, Err: e.autoErr}
	}
	return handle, nil
}

func (e *fakeExecutor) submitted() []domain.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Job(nil), e.jobs...)
}

func (e *fakeExecutor) finish(i int, err error) {
	e.mu.Lock()
	res := domain.JobResult{Handle: e.handles[i], Job: e.jobs[i], Err: err}
	e.mu.Unlock()
	e.results <- res
}

// blockingNotifier hangs in Notify until release is closed.
type blockingNotifier struct {
	release chan struct{}
}

func (n *blockingNotifier) Notify(ctx context.Context, _ string) error {
	select {
	case <-n.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type countingRecorder struct {
	NopRecorder
	mu        sync.Mutex
	cycles    int
	submitted int
	completed map[bool]int
}

func (r *countingRecorder) CycleFired() {
	r.mu.Lock()
	r.cycles++
	r.mu.Unlock()
}

func (r *countingRecorder) JobSubmitted(domain.BackupType, int) {
	r.mu.Lock()
	r.submitted++
	r.mu.Unlock()
}

func (r *countingRecorder) JobCompleted(_ domain.BackupType, ok bool) {
	r.mu.Lock()
	if r.completed == nil {
		r.completed = map[bool]int{}
	}
	r.completed[ok]++
	r.mu.Unlock()
}

// writeTree creates files relative to root, each with the given mtime.
func writeTree(root string, files map[string]time.Time) error {
	for rel, mtime := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(rel), 0644); err != nil {
			return err
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			return err
		}
	}
	return nil
}

func relPaths(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
