package marker

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

const markerExt = ".marker"

// FileStore keeps one file per (source, type). Writes go to a temp file in
// the same directory which is synced and renamed over the marker, so a
// crash leaves either the old or the new value on disk.
type FileStore struct {
	dir   string
	locks sync.Map // key -> *sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}

	// Leftovers from writes interrupted before their rename.
	leftovers, err := filepath.Glob(filepath.Join(dir, "*"+markerExt+".*.tmp"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan marker directory: %w", err)
	}
	for _, path := range leftovers {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale temp marker %s: %w", path, err)
		}
	}

	return &FileStore{dir: dir}, nil
}

func (s *FileStore) lock(k string) func() {
	mu, _ := s.locks.LoadOrStore(k, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *FileStore) path(k string) string {
	return filepath.Join(s.dir, k+markerExt)
}

func (s *FileStore) Get(ctx context.Context, sourceID string, t domain.BackupType) (domain.Marker, error) {
	k, err := key(sourceID, t)
	if err != nil {
		return domain.Marker{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Marker{}, err
	}

	unlock := s.lock(k)
	defer unlock()

	return s.read(k)
}

func (s *FileStore) read(k string) (domain.Marker, error) {
	path := s.path(k)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Marker{}, nil
	}
	if err != nil {
		return domain.Marker{}, fmt.Errorf("failed to read marker %s: %w", path, err)
	}

	at, err := DecodeInstant(string(data))
	if err != nil {
		return domain.Marker{}, fmt.Errorf("marker %s: %v: %w", path, err, domain.ErrMarkerCorrupt)
	}
	return domain.MarkerAt(at), nil
}

func (s *FileStore) Set(ctx context.Context, sourceID string, t domain.BackupType, at time.Time) error {
	k, err := key(sourceID, t)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(k)
	defer unlock()

	current, err := s.read(k)
	if err != nil && !errors.Is(err, domain.ErrMarkerCorrupt) {
		return err
	}
	if current.Present && !at.After(current.At) {
		return nil
	}

	return s.replace(k, EncodeInstant(at)+"\n")
}

func (s *FileStore) replace(k, content string) error {
	target := s.path(k)

	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp marker: %w", err)
	}
	// No-op once the rename succeeded.
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to replace marker %s: %w", target, err)
	}

	syncDir(s.dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform
// supports fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func (s *FileStore) Close() error {
	return nil
}
