package statestore

import (
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBBackend implements Backend on goleveldb. It trades some of
// pebble's write throughput for a smaller footprint and is the backend of
// choice for light deployments.
type LevelDBBackend struct {
	db     *leveldb.DB
	config *Config

	open int64 // atomic flag

	stats struct {
		reads        uint64
		writes       uint64
		deletes      uint64
		bytesRead    uint64
		bytesWritten uint64
	}
}

// syncWrites makes every write durable before returning; commits rely on it.
var syncWrites = &opt.WriteOptions{Sync: true}

// NewLevelDBBackend creates a new LevelDB backend.
func NewLevelDBBackend(config *Config) (*LevelDBBackend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: leveldb backend requires a path", ErrInvalidConfig)
	}
	return &LevelDBBackend{config: config}, nil
}

// NewLevelDBBackendFromConfig adapts NewLevelDBBackend to the Factory signature.
func NewLevelDBBackendFromConfig(config *Config) (Backend, error) {
	return NewLevelDBBackend(config)
}

// Name returns the name of this backend.
func (l *LevelDBBackend) Name() string {
	return fmt.Sprintf("leveldb(%s)", l.config.Path)
}

// Open opens the backend for use.
func (l *LevelDBBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&l.open, 0, 1) {
		return ErrBackendOpen
	}

	options := &opt.Options{
		ErrorIfMissing: !createIfMissing,
		// Values are framed and compressed by the store layer.
		Compression: opt.NoCompression,
	}

	db, err := leveldb.OpenFile(l.config.Path, options)
	if err != nil {
		atomic.StoreInt64(&l.open, 0)
		return fmt.Errorf("failed to open leveldb at %s: %w", l.config.Path, err)
	}
	l.db = db
	return nil
}

// Close closes the backend.
func (l *LevelDBBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&l.open, 1, 0) {
		return nil // already closed
	}
	if l.db != nil {
		err := l.db.Close()
		l.db = nil
		return err
	}
	return nil
}

// IsOpen returns true if the backend is currently open.
func (l *LevelDBBackend) IsOpen() bool {
	return atomic.LoadInt64(&l.open) != 0
}

// Get retrieves the value for key.
func (l *LevelDBBackend) Get(key []byte) ([]byte, error) {
	if !l.IsOpen() {
		return nil, ErrBackendClosed
	}

	value, err := l.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("leveldb get: %w", err)
	}

	atomic.AddUint64(&l.stats.reads, 1)
	atomic.AddUint64(&l.stats.bytesRead, uint64(len(value)))
	return value, nil
}

// Put stores the value under key.
func (l *LevelDBBackend) Put(key, value []byte) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}
	if err := l.db.Put(key, value, syncWrites); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	atomic.AddUint64(&l.stats.writes, 1)
	atomic.AddUint64(&l.stats.bytesWritten, uint64(len(value)))
	return nil
}

// Delete removes the key.
func (l *LevelDBBackend) Delete(key []byte) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}
	if err := l.db.Delete(key, syncWrites); err != nil {
		return fmt.Errorf("leveldb delete: %w", err)
	}
	atomic.AddUint64(&l.stats.deletes, 1)
	return nil
}

// WriteBatch applies all operations atomically.
func (l *LevelDBBackend) WriteBatch(ops []BatchOp) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			batch.Put(op.Key, op.Value)
			atomic.AddUint64(&l.stats.writes, 1)
			atomic.AddUint64(&l.stats.bytesWritten, uint64(len(op.Value)))
		case BatchDelete:
			batch.Delete(op.Key)
			atomic.AddUint64(&l.stats.deletes, 1)
		}
	}

	if err := l.db.Write(batch, syncWrites); err != nil {
		return fmt.Errorf("leveldb batch write: %w", err)
	}
	return nil
}

// ForEach iterates over every key with the given prefix in key order.
func (l *LevelDBBackend) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}

	var slice *util.Range
	if len(prefix) > 0 {
		slice = util.BytesPrefix(prefix)
	}

	iter := l.db.NewIterator(slice, nil)
	defer iter.Release()

	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Sync is satisfied by synchronous writes; nothing is buffered.
func (l *LevelDBBackend) Sync() error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}
	return nil
}

// Stats returns backend counters.
func (l *LevelDBBackend) Stats() Stats {
	return Stats{
		Reads:        atomic.LoadUint64(&l.stats.reads),
		Writes:       atomic.LoadUint64(&l.stats.writes),
		Deletes:      atomic.LoadUint64(&l.stats.deletes),
		BytesRead:    atomic.LoadUint64(&l.stats.bytesRead),
		BytesWritten: atomic.LoadUint64(&l.stats.bytesWritten),
	}
}
