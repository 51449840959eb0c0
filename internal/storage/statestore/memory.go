package statestore

import (
	"bytes"
	"sort"
	"sync"
	"sync/atomic"
)

// MemoryBackend implements an in-memory Backend. It is used by tests and by
// nodes run with a throwaway state, and is safe for concurrent use.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte

	open int64 // atomic flag for open state

	stats struct {
		reads        uint64
		writes       uint64
		deletes      uint64
		bytesRead    uint64
		bytesWritten uint64
	}
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
	}
}

// NewMemoryBackendFromConfig creates an in-memory backend from config.
// The config is ignored but required for the Factory signature.
func NewMemoryBackendFromConfig(config *Config) (Backend, error) {
	return NewMemoryBackend(), nil
}

// Name returns the name of this backend.
func (m *MemoryBackend) Name() string {
	return "memory"
}

// Open opens the backend for use.
func (m *MemoryBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&m.open, 0, 1) {
		return ErrBackendOpen
	}
	return nil
}

// Close closes the backend and clears all data.
func (m *MemoryBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&m.open, 1, 0) {
		return nil // already closed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

// IsOpen returns true if the backend is currently open.
func (m *MemoryBackend) IsOpen() bool {
	return atomic.LoadInt64(&m.open) != 0
}

// Get retrieves the value for key.
func (m *MemoryBackend) Get(key []byte) ([]byte, error) {
	if !m.IsOpen() {
		return nil, ErrBackendClosed
	}

	m.mu.RLock()
	value, found := m.data[string(key)]
	m.mu.RUnlock()

	if !found {
		return nil, ErrKeyNotFound
	}

	atomic.AddUint64(&m.stats.reads, 1)
	atomic.AddUint64(&m.stats.bytesRead, uint64(len(value)))

	// Return a copy so callers cannot mutate stored data.
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores the value under key.
func (m *MemoryBackend) Put(key, value []byte) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	m.data[string(key)] = stored
	m.mu.Unlock()

	atomic.AddUint64(&m.stats.writes, 1)
	atomic.AddUint64(&m.stats.bytesWritten, uint64(len(value)))
	return nil
}

// Delete removes the key.
func (m *MemoryBackend) Delete(key []byte) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	m.mu.Lock()
	delete(m.data, string(key))
	m.mu.Unlock()

	atomic.AddUint64(&m.stats.deletes, 1)
	return nil
}

// WriteBatch applies all operations atomically under a single lock.
func (m *MemoryBackend) WriteBatch(ops []BatchOp) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		switch op.Type {
		case BatchPut:
			stored := make([]byte, len(op.Value))
			copy(stored, op.Value)
			m.data[string(op.Key)] = stored
			atomic.AddUint64(&m.stats.writes, 1)
			atomic.AddUint64(&m.stats.bytesWritten, uint64(len(op.Value)))
		case BatchDelete:
			delete(m.data, string(op.Key))
			atomic.AddUint64(&m.stats.deletes, 1)
		}
	}
	return nil
}

// ForEach iterates over every key with the given prefix in key order.
func (m *MemoryBackend) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	// Snapshot matching keys so fn may call back into the backend.
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		m.mu.RLock()
		value, found := m.data[k]
		m.mu.RUnlock()
		if !found {
			continue
		}
		if err := fn([]byte(k), value); err != nil {
			return err
		}
	}
	return nil
}

// Sync is a no-op for the memory backend.
func (m *MemoryBackend) Sync() error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}
	return nil
}

// Stats returns backend counters.
func (m *MemoryBackend) Stats() Stats {
	m.mu.RLock()
	keys := uint64(len(m.data))
	m.mu.RUnlock()

	return Stats{
		Reads:        atomic.LoadUint64(&m.stats.reads),
		Writes:       atomic.LoadUint64(&m.stats.writes),
		Deletes:      atomic.LoadUint64(&m.stats.deletes),
		BytesRead:    atomic.LoadUint64(&m.stats.bytesRead),
		BytesWritten: atomic.LoadUint64(&m.stats.bytesWritten),
		Keys:         keys,
	}
}
