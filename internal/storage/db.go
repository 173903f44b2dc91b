// Package storage provides the key-value backends behind the wallet keystore.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes that are applied together on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by backends that can commit a Batch atomically.
type Batcher interface {
	NewBatch() Batch
}

// batchOp is a buffered write; a nil value marks a delete.
type batchOp struct {
	key   []byte
	value []byte
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// NewBatch returns an atomic batch when db supports one, and a batch that
// replays writes in order otherwise.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &sequentialBatch{db: db}
}
