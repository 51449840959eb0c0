package statestore

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// PebbleBackend implements the default on-disk Backend on PebbleDB.
type PebbleBackend struct {
	db     *pebble.DB
	config *Config

	open int64 // atomic flag, lock-free state checks

	stats struct {
		reads        uint64
		writes       uint64
		deletes      uint64
		bytesRead    uint64
		bytesWritten uint64
	}
}

// NewPebbleBackend creates a new PebbleDB backend.
func NewPebbleBackend(config *Config) (*PebbleBackend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("%w: pebble backend requires a path", ErrInvalidConfig)
	}
	return &PebbleBackend{config: config}, nil
}

// NewPebbleBackendFromConfig adapts NewPebbleBackend to the Factory signature.
func NewPebbleBackendFromConfig(config *Config) (Backend, error) {
	return NewPebbleBackend(config)
}

// Name returns the name of this backend.
func (p *PebbleBackend) Name() string {
	return fmt.Sprintf("pebble(%s)", p.config.Path)
}

// Open opens the backend for use.
func (p *PebbleBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&p.open, 0, 1) {
		return ErrBackendOpen
	}

	if createIfMissing {
		if err := os.MkdirAll(p.config.Path, 0o755); err != nil {
			atomic.StoreInt64(&p.open, 0)
			return fmt.Errorf("failed to create directory %s: %w", p.config.Path, err)
		}
	}

	db, err := pebble.Open(p.config.Path, p.buildOptions())
	if err != nil {
		atomic.StoreInt64(&p.open, 0)
		return fmt.Errorf("failed to open pebble at %s: %w", p.config.Path, err)
	}
	p.db = db
	return nil
}

// buildOptions tunes PebbleDB for the ledger workload: small values, point
// lookups by prefixed key, bursty batched writes at commit time.
func (p *PebbleBackend) buildOptions() *pebble.Options {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(128 << 20),
		MaxOpenFiles:                4096,
		MemTableSize:                32 << 20,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions: func() int {
			return runtime.NumCPU()
		},
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 20,
		LBaseMaxBytes:         128 << 20,
		Levels:                make([]pebble.LevelOptions, 7),
		DisableWAL:            false, // the WAL is what makes commits crash-safe
	}

	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      16 << 10,
			IndexBlockSize: 128 << 10,
			FilterPolicy:   bloom.FilterPolicy(10),
			FilterType:     pebble.TableFilter,
			TargetFileSize: int64(4<<20) << uint(i),
			// Values are framed and compressed by the store layer.
			Compression: pebble.NoCompression,
		}
		if opts.Levels[i].TargetFileSize > 128<<20 {
			opts.Levels[i].TargetFileSize = 128 << 20
		}
	}
	return opts
}

// Close closes the backend and releases resources.
func (p *PebbleBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&p.open, 1, 0) {
		return nil // already closed
	}

	var err error
	if p.db != nil {
		if flushErr := p.db.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := p.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		p.db = nil
	}
	return err
}

// IsOpen returns true if the backend is currently open.
func (p *PebbleBackend) IsOpen() bool {
	return atomic.LoadInt64(&p.open) != 0
}

// Get retrieves the value for key.
func (p *PebbleBackend) Get(key []byte) ([]byte, error) {
	if !p.IsOpen() {
		return nil, ErrBackendClosed
	}

	value, closer, err := p.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	atomic.AddUint64(&p.stats.reads, 1)
	atomic.AddUint64(&p.stats.bytesRead, uint64(len(value)))

	// The slice is only valid until closer.Close().
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores the value under key.
func (p *PebbleBackend) Put(key, value []byte) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}
	if err := p.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	atomic.AddUint64(&p.stats.writes, 1)
	atomic.AddUint64(&p.stats.bytesWritten, uint64(len(value)))
	return nil
}

// Delete removes the key.
func (p *PebbleBackend) Delete(key []byte) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}
	if err := p.db.Delete(key, pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	atomic.AddUint64(&p.stats.deletes, 1)
	return nil
}

// WriteBatch applies all operations atomically through a single synced
// pebble batch.
func (p *PebbleBackend) WriteBatch(ops []BatchOp) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			if err := batch.Set(op.Key, op.Value, nil); err != nil {
				return fmt.Errorf("pebble batch set: %w", err)
			}
			atomic.AddUint64(&p.stats.writes, 1)
			atomic.AddUint64(&p.stats.bytesWritten, uint64(len(op.Value)))
		case BatchDelete:
			if err := batch.Delete(op.Key, nil); err != nil {
				return fmt.Errorf("pebble batch delete: %w", err)
			}
			atomic.AddUint64(&p.stats.deletes, 1)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("pebble batch commit: %w", err)
	}
	return nil
}

// ForEach iterates over every key with the given prefix in key order.
func (p *PebbleBackend) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}

	opts := &pebble.IterOptions{}
	if len(prefix) > 0 {
		opts.LowerBound = prefix
		opts.UpperBound = prefixUpperBound(prefix)
	}

	iter, err := p.db.NewIter(opts)
	if err != nil {
		return fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Sync forces pending writes to stable storage.
func (p *PebbleBackend) Sync() error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}
	return p.db.Flush()
}

// Stats returns backend counters.
func (p *PebbleBackend) Stats() Stats {
	return Stats{
		Reads:        atomic.LoadUint64(&p.stats.reads),
		Writes:       atomic.LoadUint64(&p.stats.writes),
		Deletes:      atomic.LoadUint64(&p.stats.deletes),
		BytesRead:    atomic.LoadUint64(&p.stats.bytesRead),
		BytesWritten: atomic.LoadUint64(&p.stats.bytesWritten),
	}
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, or nil if no such key exists.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff; iterate to the end
}
