// Package idempotence remembers handled message ids in an embedded bbolt file
// so redelivered messages are processed at most once.
package idempotence

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("handled")

// Store records message ids.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the store file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open idempotence store: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open bbolt database.
func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create idempotence bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Seen reports whether id was already marked done.
func (s *Store) Seen(id string) (bool, error) {
	var seen bool
	err := s.db.View(func(tx *bolt.Tx) error {
		seen = tx.Bucket(bucketName).Get([]byte(id)) != nil
		return nil
	})
	return seen, err
}

// MarkDone records id with the current time. It returns false when id was
// already recorded.
func (s *Store) MarkDone(id string) (ok bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket.Get([]byte(id)) != nil {
			ok = false
			return nil
		}
		stamp, err := time.Now().UTC().MarshalBinary()
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), stamp); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return
}

// Forget removes id so it can be handled again.
func (s *Store) Forget(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(id))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
