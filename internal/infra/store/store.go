// Package store provides the durable keyed persistence layer mapping
// audiobook identity to saved session state.
package store

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	zlog "github.com/rs/zerolog/log"

	"github.com/wbialy/lektor/internal/domain/book"
)

const sessionPrefix = "session:"

// Errors returned by the store. Both are recoverable: the session starts
// fresh instead of failing.
var (
	ErrNotFound = errors.New("no saved session for identity")
	ErrCorrupt  = errors.New("saved session unreadable or incompatible")
)

// Store wraps a Badger database holding one record per audiobook
// identity. Old records are never evicted here. Badger transactions give
// the atomic write-new-then-replace the crash-tolerance contract needs.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil      // Badger's own logging is too chatty for a player
	opts.SyncWrites = true // A crash must not lose the latest snapshot

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state database")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the record for an identity. Returns ErrNotFound when no
// record exists and ErrCorrupt when the stored bytes cannot be decoded
// or carry an unknown format version; callers fall back to defaults in
// both cases.
func (s *Store) Load(identity book.Identity) (*Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(identity))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &rec); err != nil {
				return errors.Mark(err, ErrCorrupt)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if rec.Version != schemaVersion {
		zlog.Warn().Int("version", rec.Version).Msg("store: unknown record version, starting fresh")
		return nil, errors.Mark(errors.Newf("record version %d", rec.Version), ErrCorrupt)
	}
	return &rec, nil
}

// Save overwrites the record for an identity.
func (s *Store) Save(identity book.Identity, rec *Record) error {
	rec.Version = schemaVersion
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to encode record")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(identity), data)
	})
	return errors.Wrap(err, "failed to save record")
}

// Delete removes the record for an identity. Deleting a missing record
// is a no-op.
func (s *Store) Delete(identity book.Identity) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(identity))
	})
	return errors.Wrap(err, "failed to delete record")
}

func key(identity book.Identity) []byte {
	return []byte(sessionPrefix + string(identity))
}
