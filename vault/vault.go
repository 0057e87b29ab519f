// Package vault provides the durable core.Storage implementation backed by
// BadgerDB. Records are stored under their relay-assigned keys inside a
// single key prefix so unrelated data can share the database.
package vault

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/logging"
)

const keyPrefix = "quorum:"

// Store is a BadgerDB-backed core.Storage. It does not own the *badger.DB:
// callers open and close the database and may share it with other
// components.
type Store struct {
	db  *badger.DB
	log logging.Logger
}

// NewStore wraps an open BadgerDB handle.
func NewStore(db *badger.DB, log logging.Logger) *Store {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Store{db: db, log: log}
}

// Open opens (or creates) a BadgerDB at dir and returns a Store over it.
// The caller must Close the store when done.
func Open(dir string, log logging.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault at %s: %w", dir, err)
	}
	return NewStore(db, log), nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Store persists the record under key inside a write transaction.
func (s *Store) Store(key string, record []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), record)
	})
	if err != nil {
		return fmt.Errorf("vault store %s: %w", key, err)
	}
	s.log.Debug("vault stored key=%s bytes=%d", key, len(record))
	return nil
}

// Fetch reads the record stored under key. A missing key maps to
// core.ErrRecordNotFound.
func (s *Store) Fetch(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vault fetch %s: %w", key, err)
	}
	return out, nil
}

// Purge deletes the record stored under key. Purging a missing key is a
// no-op.
func (s *Store) Purge(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("vault purge %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys (without the internal prefix), mostly for
// diagnostics and tests.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
