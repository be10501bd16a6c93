// Package localstore is the storefront's persistent key/value store, the
// server-side equivalent of the browser's localStorage. It keeps the handful
// of values that must survive a restart: the auth token, the serialized user,
// the token expiration instant and the proxy-mode flag.
//
// BoltDB keeps everything in a single file, so no external database process
// is required.
package localstore

import (
	"errors"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "storefront"

// Well-known keys.
const (
	KeyToken      = "auth_token"
	KeyUser       = "auth_user"
	KeyExpiration = "auth_expiration"
	KeyUseProxy   = "use_proxy"
)

// ErrNotFound is returned when a requested key has no stored value.
var ErrNotFound = errors.New("localstore: key not found")

// Store wraps a BoltDB database with a single bucket of string keys.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the state file at the given path and ensures the
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		val = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return "", err
	}
	return string(val), nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), []byte(value))
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(keys ...string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}
