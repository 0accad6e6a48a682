package domain

import (
	"context"
	"time"
)

// Marker is the last successful backup instant for a (source, type) pair.
// The zero value is an absent marker.
type Marker struct {
	At      time.Time
	Present bool
}

func MarkerAt(at time.Time) Marker {
	return Marker{At: at, Present: true}
}

// Admits reports whether a file modified at mod is newer than the marker.
// An absent marker admits everything.
func (m Marker) Admits(mod time.Time) bool {
	return !m.Present || mod.After(m.At)
}

// Latest returns whichever marker is more recent.
func (m Marker) Latest(other Marker) Marker {
	switch {
	case !other.Present:
		return m
	case !m.Present:
		return other
	case other.At.After(m.At):
		return other
	default:
		return m
	}
}

// MarkerStore persists markers keyed by source id and backup type.
//
// Get returns an absent marker when nothing was stored. A stored value
// that cannot be parsed yields an absent marker and an error wrapping
// ErrMarkerCorrupt. Any other error means the store cannot be trusted.
//
// Set never moves a marker backwards.
type MarkerStore interface {
	Get(ctx context.Context, sourceID string, t BackupType) (Marker, error)
	Set(ctx context.Context, sourceID string, t BackupType, at time.Time) error
	Close() error
}
