package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMarkerCorrupt     = errors.New("marker corrupt")
	ErrInvalidKey        = errors.New("invalid marker key")
	ErrNotDirectory      = errors.New("origin is not a directory")
	ErrAmbiguousOverride = errors.New("both full and incremental overrides are set")
	ErrExecutorClosed    = errors.New("executor closed")
)

// ConfigWarning is a non-fatal configuration problem found while
// planning a cycle.
type ConfigWarning struct {
	SourceID string
	Err      error
}

func (w *ConfigWarning) Error() string {
	return fmt.Sprintf("source %s: configuration warning: %v", w.SourceID, w.Err)
}

func (w *ConfigWarning) Unwrap() error { return w.Err }

// TraversalWarning reports a single entry that could not be inspected.
type TraversalWarning struct {
	Path string
	Err  error
}

func (w *TraversalWarning) Error() string {
	return fmt.Sprintf("skip %s: %v", w.Path, w.Err)
}

func (w *TraversalWarning) Unwrap() error { return w.Err }

// DispatchError means the executor rejected a job.
type DispatchError struct {
	SourceID string
	Type     BackupType
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s backup of %s: %v", e.Type, e.SourceID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ExecutionError means a submitted job failed while running.
type ExecutionError struct {
	Handle JobHandle
	Stage  string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %s failed during %s: %v", e.Handle, e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// FatalError stops the scheduler.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
