package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/domain"
)

// Resolver keyspaces, sharing the ledger's store:
//
//	n ++ label     -> be64(id)
//	i ++ be64(id)  -> label
const (
	prefixName byte = 'n'
	prefixID   byte = 'i'
)

// Resolver maps human-readable labels to entity identifiers and back. Both
// directions are written in one transaction, so the pair of keyspaces can
// never disagree. Entity identifiers come from their own monotonic counter,
// recovered the same way as the ledger's.
type Resolver struct {
	db     *DB
	logger *zap.Logger
	nextID atomic.Uint64
}

func NewResolver(db *DB, logger *zap.Logger) (*Resolver, error) {
	r := &Resolver{db: db, logger: logger}

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := [9]byte{prefixID, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		it.Seek(seek[:])
		if it.ValidForPrefix([]byte{prefixID}) {
			key := it.Item().Key()
			if len(key) != 9 {
				return fmt.Errorf("%w: entity key %x has bad length", ErrBadEncoding, key)
			}
			r.nextID.Store(binary.BigEndian.Uint64(key[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: recover counter: %w", err)
	}
	return r, nil
}

func nameKey(label string) []byte {
	key := make([]byte, 1+len(label))
	key[0] = prefixName
	copy(key[1:], label)
	return key
}

func idKey(id domain.EntityID) []byte {
	key := make([]byte, 9)
	key[0] = prefixID
	binary.BigEndian.PutUint64(key[1:], uint64(id))
	return key
}

// Resolve returns the identifier for a label, allocating a fresh one if the
// label has never been seen.
func (r *Resolver) Resolve(ctx context.Context, label string) (domain.EntityID, error) {
	if label == "" {
		return domain.NoEntity, fmt.Errorf("resolver: label must not be empty")
	}

	var id domain.EntityID
	resolve := func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(label))
		if err == nil {
			return item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("%w: entity value for %q has bad length", ErrBadEncoding, label)
				}
				id = domain.EntityID(binary.BigEndian.Uint64(val))
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id = domain.EntityID(r.nextID.Add(1))
		var val [8]byte
		binary.BigEndian.PutUint64(val[:], uint64(id))
		if err := txn.Set(nameKey(label), val[:]); err != nil {
			return err
		}
		return txn.Set(idKey(id), []byte(label))
	}

	// Two goroutines racing on a new label both read the name key, so one
	// of the commits fails with a conflict; re-running it finds the winner.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = r.db.Update(resolve)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return domain.NoEntity, fmt.Errorf("resolver: resolve %q: %w", label, err)
	}
	return id, nil
}

// Lookup returns the identifier for a label without allocating.
func (r *Resolver) Lookup(ctx context.Context, label string) (domain.EntityID, error) {
	var id domain.EntityID
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(label))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("%w: entity value for %q has bad length", ErrBadEncoding, label)
			}
			id = domain.EntityID(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadEncoding) {
			return domain.NoEntity, err
		}
		return domain.NoEntity, fmt.Errorf("resolver: lookup %q: %w", label, err)
	}
	return id, nil
}

// NameOf returns the label an identifier was allocated for.
func (r *Resolver) NameOf(ctx context.Context, id domain.EntityID) (string, error) {
	var label string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return &NotFoundError{ID: id}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			label = string(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("resolver: name of %d: %w", id, err)
	}
	return label, nil
}
