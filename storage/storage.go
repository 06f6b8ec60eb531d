// Package storage provides the durable key-value stores the SDK keeps its
// backup log and meta state in.
//
// Every value is an opaque blob written under a single well-known key, so a
// Store only needs whole-value reads and writes. Backends in sub-packages
// (boltstore, sqlitestore) persist across process restarts; Memory does not.
package storage

import "errors"

// ErrNotFound is returned by Store.Read when no value exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Store is a durable key-value store holding whole blobs.
type Store interface {
	// Read returns the blob stored under key or ErrNotFound.
	Read(key string) ([]byte, error)
	// Write replaces the blob stored under key.
	Write(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}
