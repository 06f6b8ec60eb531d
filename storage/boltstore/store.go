// Package boltstore is a storage.Store backed by a BoltDB file.
package boltstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/beacon-sdk/beacon-go/storage"
)

const bucketName = "beacon"

// Store persists blobs in a single BoltDB bucket.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) a BoltDB-backed store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Read(key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("bucket %q is missing", bucketName)
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return storage.ErrNotFound
		}
		// v is only valid for the life of the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Write(key string, value []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("bucket %q is missing", bucketName)
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *Store) Delete(key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return fmt.Errorf("bucket %q is missing", bucketName)
		}
		return bucket.Delete([]byte(key))
	})
}
