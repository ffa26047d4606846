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

// Keyspace prefixes. Everything lives in one badger instance so a single
// transaction covers the primary table and all three indices.
//
//	p ++ be64(id)                    -> encoded record
//	d ++ be64(derived) ++ be64(id)   -> nil
//	s ++ be64(source)  ++ be64(id)   -> nil
//	k ++ tag           ++ be64(id)   -> nil
const (
	prefixPrimary byte = 'p'
	prefixDerived byte = 'd'
	prefixSource  byte = 's'
	prefixKind    byte = 'k'
)

// Ledger is the persistent justification ledger. Identifiers come from a
// process-wide monotonic counter; a failed transaction spends its identifier
// (gaps are fine, reuse is not).
type Ledger struct {
	db     *DB
	logger *zap.Logger
	nextID atomic.Uint64
}

// NewLedger attaches a ledger to an open store, recovering the identifier
// counter from the highest key in the primary keyspace. Keys are ordered, so
// recovery is a reverse seek rather than a linear scan.
func NewLedger(db *DB, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{db: db, logger: logger}

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Highest possible primary key; the first valid item at or below it
		// is the newest record.
		seek := [9]byte{prefixPrimary, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
		it.Seek(seek[:])
		if it.ValidForPrefix([]byte{prefixPrimary}) {
			key := it.Item().Key()
			if len(key) != 9 {
				return fmt.Errorf("%w: primary key %x has bad length", ErrBadEncoding, key)
			}
			l.nextID.Store(binary.BigEndian.Uint64(key[1:]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: recover counter: %w", err)
	}

	if max := l.nextID.Load(); max > 0 {
		logger.Info("ledger attached", zap.Uint64("max_record_id", max))
	}
	return l, nil
}

func primaryKey(id domain.EntityID) []byte {
	key := make([]byte, 9)
	key[0] = prefixPrimary
	binary.BigEndian.PutUint64(key[1:], uint64(id))
	return key
}

func indexKey(prefix byte, entity domain.EntityID, id domain.EntityID) []byte {
	key := make([]byte, 17)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], uint64(entity))
	binary.BigEndian.PutUint64(key[9:], uint64(id))
	return key
}

func kindKey(tag domain.KindTag, id domain.EntityID) []byte {
	key := make([]byte, 10)
	key[0] = prefixKind
	key[1] = byte(tag)
	binary.BigEndian.PutUint64(key[2:], uint64(id))
	return key
}

// insert writes the primary row and all index rows for one record inside
// the supplied transaction.
func insert(txn *badger.Txn, r *domain.ProvenanceRecord) error {
	if err := txn.Set(primaryKey(r.ID), encodeRecord(r)); err != nil {
		return err
	}
	if err := txn.Set(indexKey(prefixDerived, r.DerivedID, r.ID), nil); err != nil {
		return err
	}
	for _, src := range r.Sources {
		if err := txn.Set(indexKey(prefixSource, src, r.ID), nil); err != nil {
			return err
		}
	}
	return txn.Set(kindKey(r.Kind.Tag, r.ID), nil)
}

// Store assigns the next identifier, stamps it on the record, and writes the
// primary row plus all three index rows in one atomic transaction.
func (l *Ledger) Store(ctx context.Context, r *domain.ProvenanceRecord) (domain.EntityID, error) {
	if err := r.Validate(); err != nil {
		return domain.NoEntity, fmt.Errorf("ledger: %w", err)
	}

	id := domain.EntityID(l.nextID.Add(1))
	r.ID = id

	err := l.db.Update(func(txn *badger.Txn) error {
		return insert(txn, r)
	})
	if err != nil {
		r.ID = domain.NoEntity
		return domain.NoEntity, fmt.Errorf("ledger: store record: %w", err)
	}
	return id, nil
}

// StoreBatch assigns identifiers and encodes every record up front, then
// performs all insertions in a single transaction: the batch is durable
// all-or-nothing.
func (l *Ledger) StoreBatch(ctx context.Context, records []*domain.ProvenanceRecord) ([]domain.EntityID, error) {
	if len(records) == 0 {
		return nil, nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
	}

	ids := make([]domain.EntityID, len(records))
	for i, r := range records {
		ids[i] = domain.EntityID(l.nextID.Add(1))
		r.ID = ids[i]
	}

	err := l.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := insert(txn, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, r := range records {
			r.ID = domain.NoEntity
		}
		return nil, fmt.Errorf("ledger: store batch of %d: %w", len(records), err)
	}

	l.logger.Debug("stored record batch",
		zap.Int("count", len(records)),
		zap.Uint64("first_id", uint64(ids[0])),
		zap.Uint64("last_id", uint64(ids[len(ids)-1])))
	return ids, nil
}

// Get performs a point lookup inside a snapshot read transaction.
func (l *Ledger) Get(ctx context.Context, id domain.EntityID) (*domain.ProvenanceRecord, error) {
	var rec *domain.ProvenanceRecord
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadEncoding) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: get record %d: %w", id, err)
	}
	return rec, nil
}

func getRecord(txn *badger.Txn, id domain.EntityID) (*domain.ProvenanceRecord, error) {
	item, err := txn.Get(primaryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	var rec *domain.ProvenanceRecord
	err = item.Value(func(val []byte) error {
		var derr error
		rec, derr = decodeRecord(id, val)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ByDerived returns every record whose derivation produced the given entity.
func (l *Ledger) ByDerived(ctx context.Context, derived domain.EntityID) ([]domain.ProvenanceRecord, error) {
	prefix := make([]byte, 9)
	prefix[0] = prefixDerived
	binary.BigEndian.PutUint64(prefix[1:], uint64(derived))
	return l.scanIndex(prefix, 9)
}

// BySource answers the reverse-dependency question: every record that used
// the given entity as a premise.
func (l *Ledger) BySource(ctx context.Context, source domain.EntityID) ([]domain.ProvenanceRecord, error) {
	prefix := make([]byte, 9)
	prefix[0] = prefixSource
	binary.BigEndian.PutUint64(prefix[1:], uint64(source))
	return l.scanIndex(prefix, 9)
}

// ByKind returns every record stored under the given derivation tag.
func (l *Ledger) ByKind(ctx context.Context, tag domain.KindTag) ([]domain.ProvenanceRecord, error) {
	return l.scanIndex([]byte{prefixKind, byte(tag)}, 2)
}

// scanIndex walks one secondary-index prefix inside a single read
// transaction and resolves every hit against the primary table.
func (l *Ledger) scanIndex(prefix []byte, idOffset int) ([]domain.ProvenanceRecord, error) {
	var out []domain.ProvenanceRecord
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if len(key) != idOffset+8 {
				return fmt.Errorf("%w: index key %x has bad length", ErrBadEncoding, key)
			}
			id := domain.EntityID(binary.BigEndian.Uint64(key[idOffset:]))
			rec, err := getRecord(txn, id)
			if err != nil {
				return err
			}
			out = append(out, *rec)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadEncoding) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: scan index: %w", err)
	}
	return out, nil
}

// NextID reports the identifier the next stored record will receive.
// Diagnostic only; concurrent stores may claim it first.
func (l *Ledger) NextID() domain.EntityID {
	return domain.EntityID(l.nextID.Load() + 1)
}
