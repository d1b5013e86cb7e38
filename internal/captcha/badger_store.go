package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "captcha/"

// BadgerStore persists captcha entries in Badger, relying on its native
// TTL for expiry and on transaction conflict detection for single use.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a Badger database at dir.
// An empty dir opens an in-memory database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open captcha store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Set(_ context.Context, sessionID string, digest []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+sessionID), digest).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// Take reads and deletes the entry in one transaction. When two callers race
// on the same key, the losing commit fails with ErrConflict and is reported
// as ErrNotFound.
func (s *BadgerStore) Take(_ context.Context, sessionID string) ([]byte, error) {
	var digest []byte
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(keyPrefix + sessionID)
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		digest, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	switch {
	case err == nil:
		return digest, nil
	case errors.Is(err, badger.ErrKeyNotFound), errors.Is(err, badger.ErrConflict):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("take captcha: %w", err)
	}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
