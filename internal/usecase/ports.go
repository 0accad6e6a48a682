package usecase

import "github.com/semmidev/strata/internal/domain"

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Recorder receives engine events for metrics.
type Recorder interface {
	CycleFired()
	JobSubmitted(t domain.BackupType, files int)
	JobRejected(t domain.BackupType)
	JobCompleted(t domain.BackupType, ok bool)
	TraversalWarnings(n int)
	MarkerAdvanced(t domain.BackupType)
}

type NopRecorder struct{}

func (NopRecorder) CycleFired()                          {}
func (NopRecorder) JobSubmitted(domain.BackupType, int)  {}
func (NopRecorder) JobRejected(domain.BackupType)        {}
func (NopRecorder) JobCompleted(domain.BackupType, bool) {}
func (NopRecorder) TraversalWarnings(int)                {}
func (NopRecorder) MarkerAdvanced(domain.BackupType)     {}
