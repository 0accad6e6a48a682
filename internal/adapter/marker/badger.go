package marker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/semmidev/strata/internal/domain"
)

const (
	badgerKeyPrefix   = "marker:"
	badgerMaxConflict = 5
)

// BadgerStore keeps markers in an embedded BadgerDB. Each Set runs in its
// own transaction; badger's conflict detection gives per-key atomicity.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database at dir. An empty dir opens an
// in-memory database, used by tests.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger marker store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Get(ctx context.Context, sourceID string, t domain.BackupType) (domain.Marker, error) {
	k, err := key(sourceID, t)
	if err != nil {
		return domain.Marker{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Marker{}, err
	}

	var m domain.Marker
	err = s.db.View(func(txn *badger.Txn) error {
		m, err = readBadger(txn, k)
		return err
	})
	return m, err
}

func readBadger(txn *badger.Txn, k string) (domain.Marker, error) {
	item, err := txn.Get([]byte(badgerKeyPrefix + k))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Marker{}, nil
	}
	if err != nil {
		return domain.Marker{}, fmt.Errorf("get marker %s: %w", k, err)
	}

	var at time.Time
	err = item.Value(func(val []byte) error {
		var decodeErr error
		at, decodeErr = DecodeInstant(string(val))
		return decodeErr
	})
	if err != nil {
		return domain.Marker{}, fmt.Errorf("marker %s: %v: %w", k, err, domain.ErrMarkerCorrupt)
	}
	return domain.MarkerAt(at), nil
}

func (s *BadgerStore) Set(ctx context.Context, sourceID string, t domain.BackupType, at time.Time) error {
	k, err := key(sourceID, t)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			current, err := readBadger(txn, k)
			if err != nil && !errors.Is(err, domain.ErrMarkerCorrupt) {
				return err
			}
			if current.Present && !at.After(current.At) {
				return nil
			}
			return txn.Set([]byte(badgerKeyPrefix+k), []byte(EncodeInstant(at)))
		})
		if !errors.Is(err, badger.ErrConflict) || attempt >= badgerMaxConflict {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("set marker %s: %w", k, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
