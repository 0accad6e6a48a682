package archiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/semmidev/strata/internal/domain"
)

const ioBufferSize = 1 << 20

// errFileShrank means a file got shorter while it was being archived. Its
// entry is kept, zero padded to the size it had when archiving started.
var errFileShrank = errors.New("file shrank while archiving")

type Logger interface {
	Warnf(template string, args ...interface{})
}

// entryWriter is one archive format.
type entryWriter interface {
	AddFile(name string, info fs.FileInfo, r io.Reader) error
	AddDir(name string, info fs.FileInfo) error
	Close() error
}

// Archiver writes archives of one format. The archive is assembled in a
// temp file next to the destination and renamed into place only when
// every file was added, so a failed or interrupted job never leaves a
// partial archive under the final name.
type Archiver struct {
	ext       string
	newWriter func(io.Writer) (entryWriter, error)
	logger    Logger
}

// New returns the archiver for format "zip" or "tar.gz".
func New(format string, logger Logger) (*Archiver, error) {
	switch format {
	case "", "zip":
		return &Archiver{ext: ".zip", newWriter: newZipWriter, logger: logger}, nil
	case "tar.gz":
		return &Archiver{ext: ".tar.gz", newWriter: newTarGzWriter, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s", format)
	}
}

func (a *Archiver) Extension() string {
	return a.ext
}

func (a *Archiver) Write(ctx context.Context, req domain.ArchiveRequest) (path string, retErr error) {
	origin, err := filepath.Abs(req.Origin)
	if err != nil {
		return "", fmt.Errorf("failed to resolve origin: %w", err)
	}
	if err := os.MkdirAll(req.Destination, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}

	final := filepath.Join(req.Destination, req.Name+a.ext)
	tmp, err := os.CreateTemp(req.Destination, "."+req.Name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp archive: %w", err)
	}
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriterSize(tmp, ioBufferSize)
	w, err := a.newWriter(buf)
	if err != nil {
		return "", err
	}

	skipped := 0
	for _, file := range req.Files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := a.addFile(w, origin, file)
		if errors.Is(err, fs.ErrNotExist) {
			a.logger.Warnf("File vanished before archiving, skipped: %s", file)
			skipped++
			continue
		}
		if errors.Is(err, errFileShrank) {
			a.logger.Warnf("File shrank while archiving, entry padded: %s", file)
			continue
		}
		if err != nil {
			return "", err
		}
	}

	if req.EmptyDirs {
		if err := a.addEmptyDirs(ctx, w, origin); err != nil {
			return "", err
		}
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}

	if skipped > 0 {
		a.logger.Warnf("Archive %s written without %d vanished file(s)", final, skipped)
	}
	return final, nil
}

func (a *Archiver) addFile(w entryWriter, origin, path string) error {
	name, err := entryName(origin, path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	if err := w.AddFile(name, info, f); err != nil {
		return fmt.Errorf("add %s: %w", path, err)
	}
	return nil
}

// addEmptyDirs records directories without any entries so a restore
// recreates them.
func (a *Archiver) addEmptyDirs(ctx context.Context, w entryWriter, origin string) error {
	return filepath.WalkDir(origin, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			a.logger.Warnf("Cannot inspect %s for empty directories: %v", path, err)
			return nil
		}
		if !d.IsDir() || path == origin {
			return nil
		}

		entries, err := os.ReadDir(path)
		if err != nil || len(entries) > 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		name, err := entryName(origin, path)
		if err != nil {
			return err
		}
		if err := w.AddDir(name, info); err != nil {
			return fmt.Errorf("add directory %s: %w", path, err)
		}
		return nil
	})
}

// entryName is path relative to origin with forward slashes.
func entryName(origin, path string) (string, error) {
	rel, err := filepath.Rel(origin, path)
	if err != nil {
		return "", fmt.Errorf("%s is not under %s: %w", path, origin, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not under %s", path, origin)
	}
	return filepath.ToSlash(rel), nil
}
