package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB implements DB using Badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadger opens (or creates) a Badger database at path.
func NewBadger(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logger is too chatty for a wallet daemon.

	db, err := badger.Open(opts)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "Cannot acquire directory lock") ||
			strings.Contains(msg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("keystore at %s is locked (is another walletd running?): %w", path, err)
		}
		return nil, fmt.Errorf("open keystore at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerDB) Put(key, value []byte) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("badger put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BadgerDB) Delete(key []byte) error {
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		case err != nil:
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger has: %w", err)
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

// NewBatch returns a batch committed in a single Badger transaction.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

type badgerBatch struct {
	db  *badger.DB
	ops []batchOp
}

func (bb *badgerBatch) Put(key, value []byte) error {
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	bb.ops = append(bb.ops, batchOp{key: cloneBytes(key), value: v})
	return nil
}

func (bb *badgerBatch) Delete(key []byte) error {
	bb.ops = append(bb.ops, batchOp{key: cloneBytes(key)})
	return nil
}

func (bb *badgerBatch) Commit() error {
	err := bb.db.Update(func(txn *badger.Txn) error {
		for _, op := range bb.ops {
			var err error
			if op.value == nil {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger batch commit: %w", err)
	}
	bb.ops = nil
	return nil
}
