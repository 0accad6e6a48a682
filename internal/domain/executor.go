package domain

import "context"

// Executor runs backup jobs out of band. Results are reported
// asynchronously on the channel the executor was built with.
type Executor interface {
	Submit(ctx context.Context, job Job) (JobHandle, error)
}

// ArchiveRequest is the input of an archive writer.
type ArchiveRequest struct {
	Origin      string
	Destination string
	Name        string
	Files       []string
	// EmptyDirs adds entries for empty directories under Origin.
	EmptyDirs bool
}

// Archiver writes the files of a request into a single archive and
// returns its path.
type Archiver interface {
	Write(ctx context.Context, req ArchiveRequest) (string, error)
	Extension() string
}

// Notifier delivers short human readable messages about job outcomes.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
