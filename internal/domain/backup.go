package domain

import (
	"fmt"
	"strings"
	"time"
)

// BackupType is the kind of backup run for a source in one cycle.
type BackupType int

const (
	Full BackupType = iota + 1
	Incremental
)

// BackupTypes lists every backup type in dispatch order.
var BackupTypes = []BackupType{Full, Incremental}

func (t BackupType) String() string {
	switch t {
	case Full:
		return "full"
	case Incremental:
		return "incremental"
	default:
		return fmt.Sprintf("BackupType(%d)", int(t))
	}
}

// Prefix is the archive name prefix for the type.
func (t BackupType) Prefix() string {
	switch t {
	case Full:
		return "COM"
	case Incremental:
		return "INC"
	default:
		return "UNK"
	}
}

func (t BackupType) Valid() bool {
	return t == Full || t == Incremental
}

func ParseBackupType(s string) (BackupType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return Full, nil
	case "incremental":
		return Incremental, nil
	default:
		return 0, fmt.Errorf("unknown backup type %q", s)
	}
}

// Override forces a backup type for a source. Setting both flags is
// ambiguous and falls back to the day-of-week policy.
type Override struct {
	Full        bool
	Incremental bool
}

// Source describes one backup target. It is immutable after load.
type Source struct {
	ID          string
	Origin      string
	Destination string
	BaseName    string
	Override    Override
}

// Job is handed once to the execution collaborator.
type Job struct {
	Source     Source
	Type       BackupType
	Files      []string
	ResolvedAt time.Time
}

// ArchiveName is the file name, without extension, of the archive
// produced for the job.
func (j Job) ArchiveName() string {
	return fmt.Sprintf("%s_%s_%s", j.Type.Prefix(), j.Source.BaseName, j.ResolvedAt.Format(ArchiveStampLayout))
}

// ArchiveStampLayout is the timestamp layout embedded in archive names.
const ArchiveStampLayout = "02-01-2006_15-04"

// JobHandle identifies a submitted job.
type JobHandle string

// JobResult is reported by the executor once a job finished. A nil Err
// means success.
type JobResult struct {
	Handle   JobHandle
	Job      Job
	Archive  string
	Duration time.Duration
	Err      error
}

func (r JobResult) Succeeded() bool {
	return r.Err == nil
}
