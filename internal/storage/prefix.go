package storage

// PrefixDB wraps a DB and prepends a fixed prefix to all keys.
// The daemon keeps the keystore under its own namespace of the data
// directory database.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB creates a new PrefixDB wrapping inner with the given prefix.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: cloneBytes(prefix)}
}

func (p *PrefixDB) key(k []byte) []byte {
	return withPrefix(p.prefix, k)
}

func withPrefix(prefix, key []byte) []byte {
	out := make([]byte, len(prefix)+len(key))
	copy(out, prefix)
	copy(out[len(prefix):], key)
	return out
}

// Get retrieves a value by key.
func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(p.key(key)) }

// Put stores a key-value pair.
func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(p.key(key), value) }

// Delete removes a key.
func (p *PrefixDB) Delete(key []byte) error { return p.inner.Delete(p.key(key)) }

// Has checks if a key exists.
func (p *PrefixDB) Has(key []byte) (bool, error) { return p.inner.Has(p.key(key)) }

// ForEach iterates over keys under prefix within this namespace. Keys passed
// to fn have the namespace stripped.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// DeleteAll removes every key in this namespace.
func (p *PrefixDB) DeleteAll() error {
	var keys [][]byte
	err := p.inner.ForEach(p.prefix, func(key, _ []byte) error {
		keys = append(keys, cloneBytes(key))
		return nil
	})
	if err != nil {
		return err
	}

	b := p.NewBatch()
	for _, k := range keys {
		if err := b.Delete(k[len(p.prefix):]); err != nil {
			return err
		}
	}
	return b.Commit()
}

// Close is a no-op; the inner DB owns its lifecycle.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a namespaced batch. It is atomic when the inner DB
// implements Batcher and applies writes one by one otherwise.
func (p *PrefixDB) NewBatch() Batch {
	if _, ok := p.inner.(Batcher); ok {
		return &prefixBatch{inner: NewBatch(p.inner), prefix: p.prefix}
	}
	return &sequentialBatch{db: p}
}

type prefixBatch struct {
	inner  Batch
	prefix []byte
}

func (pb *prefixBatch) Put(key, value []byte) error {
	return pb.inner.Put(withPrefix(pb.prefix, key), value)
}

func (pb *prefixBatch) Delete(key []byte) error {
	return pb.inner.Delete(withPrefix(pb.prefix, key))
}

func (pb *prefixBatch) Commit() error { return pb.inner.Commit() }

// sequentialBatch buffers writes and replays them against a DB that has no
// native batching.
type sequentialBatch struct {
	db  DB
	ops []batchOp
}

func (sb *sequentialBatch) Put(key, value []byte) error {
	v := cloneBytes(value)
	if v == nil {
		v = []byte{}
	}
	sb.ops = append(sb.ops, batchOp{key: cloneBytes(key), value: v})
	return nil
}

func (sb *sequentialBatch) Delete(key []byte) error {
	sb.ops = append(sb.ops, batchOp{key: cloneBytes(key)})
	return nil
}

func (sb *sequentialBatch) Commit() error {
	for _, op := range sb.ops {
		var err error
		if op.value == nil {
			err = sb.db.Delete(op.key)
		} else {
			err = sb.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	sb.ops = nil
	return nil
}
