package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/semmidev/strata/internal/domain"
)

// ChangeSet is the resolved candidate file set of one source.
type ChangeSet struct {
	Files    []string
	Warnings []*domain.TraversalWarning
}

var errStopScan = errors.New("scan stopped")

// Scan walks origin lazily and yields the absolute path of every regular
// file that qualifies for a backup of type t against marker m. Calling
// the returned sequence again restarts the walk.
//
// Symlinks are never followed and directories are never yielded.
// Entries that cannot be inspected are yielded as a *domain.TraversalWarning
// with the offending path and the walk continues. Any other error is
// yielded once and ends the sequence: origin missing or not a directory,
// origin unreadable, or ctx cancelled.
func Scan(ctx context.Context, origin string, t domain.BackupType, m domain.Marker) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		root, err := filepath.Abs(origin)
		if err != nil {
			yield("", fmt.Errorf("resolve origin %s: %w", origin, err))
			return
		}

		info, err := os.Stat(root)
		if err != nil {
			yield("", fmt.Errorf("stat origin: %w", err))
			return
		}
		if !info.IsDir() {
			yield("", fmt.Errorf("%s: %w", root, domain.ErrNotDirectory))
			return
		}

		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == root {
					return err
				}
				if !yield(path, &domain.TraversalWarning{Path: path, Err: err}) {
					return errStopScan
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			if t == domain.Incremental && m.Present {
				fi, err := d.Info()
				if err != nil {
					if !yield(path, &domain.TraversalWarning{Path: path, Err: err}) {
						return errStopScan
					}
					return nil
				}
				if !m.Admits(fi.ModTime()) {
					return nil
				}
			}

			if !yield(path, nil) {
				return errStopScan
			}
			return nil
		})

		if walkErr != nil && !errors.Is(walkErr, errStopScan) {
			yield("", walkErr)
		}
	}
}

// Resolve collects Scan into a ChangeSet. The returned error is only set
// for failures that prevent resolving the source at all; the partial set
// gathered so far is still returned.
func Resolve(ctx context.Context, origin string, t domain.BackupType, m domain.Marker) (ChangeSet, error) {
	var cs ChangeSet
	for path, err := range Scan(ctx, origin, t, m) {
		var warning *domain.TraversalWarning
		switch {
		case errors.As(err, &warning):
			cs.Warnings = append(cs.Warnings, warning)
		case err != nil:
			return cs, err
		default:
			cs.Files = append(cs.Files, path)
		}
	}
	return cs, nil
}
