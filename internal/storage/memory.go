package storage

import (
	"sort"
	"strings"
	"sync"
)

// MemoryDB implements DB using an in-memory map. Safe for concurrent use.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

// Put stores a key-value pair.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	m.data[string(key)] = v
	return nil
}

// Delete removes a key.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix in key order.
// The snapshot is taken up front so fn may write to the database.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)

	m.mu.RLock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = cloneBytes(m.data[k])
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (m *MemoryDB) Close() error {
	return nil
}

// NewBatch returns a batch that is applied under a single lock.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

type memoryBatch struct {
	db  *MemoryDB
	ops []batchOp
}

func (b *memoryBatch) Put(key, value []byte) error {
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: v})
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key)})
	return nil
}

func (b *memoryBatch) Commit() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.value == nil {
			delete(b.db.data, string(op.key))
		} else {
			b.db.data[string(op.key)] = op.value
		}
	}
	b.ops = nil
	return nil
}
