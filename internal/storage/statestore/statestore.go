// Package statestore provides the durable key-value layer under the ledger.
// Backends are pluggable (pebble, leveldb, memory) and register themselves by
// name; values pass through a framing codec that handles optional compression.
package statestore

import (
	"fmt"
	"sync"
)

// Backend is a raw key-value store. Keys are opaque byte strings owned by the
// caller; the ledger partitions them by single-byte prefixes.
type Backend interface {
	// Name returns a human-readable name for this backend.
	Name() string

	// Open opens the backend for use.
	Open(createIfMissing bool) error

	// Close closes the backend and releases resources.
	Close() error

	// IsOpen returns true if the backend is currently open.
	IsOpen() bool

	// Get retrieves the value for key. Returns ErrKeyNotFound if absent.
	Get(key []byte) ([]byte, error)

	// Put stores the value under key, replacing any previous value.
	Put(key, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// WriteBatch applies all operations atomically.
	WriteBatch(ops []BatchOp) error

	// ForEach iterates over every key with the given prefix, in key order.
	// The callback's slices are only valid for the duration of the call.
	ForEach(prefix []byte, fn func(key, value []byte) error) error

	// Sync forces pending writes to stable storage.
	Sync() error

	// Stats returns backend counters.
	Stats() Stats
}

// BatchOpType distinguishes batch operations.
type BatchOpType int

const (
	// BatchPut stores a key-value pair.
	BatchPut BatchOpType = iota
	// BatchDelete removes a key.
	BatchDelete
)

// BatchOp is a single operation inside an atomic batch.
type BatchOp struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

// Stats holds backend counters. All values are cumulative since Open.
type Stats struct {
	Reads        uint64
	Writes       uint64
	Deletes      uint64
	BytesRead    uint64
	BytesWritten uint64
	Keys         uint64 // approximate live key count, 0 if unknown
}

func (s Stats) String() string {
	return fmt.Sprintf("reads=%d writes=%d deletes=%d bytesRead=%d bytesWritten=%d",
		s.Reads, s.Writes, s.Deletes, s.BytesRead, s.BytesWritten)
}

// Factory creates a backend instance from configuration.
type Factory func(config *Config) (Backend, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a backend factory under the given name.
func Register(name string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = factory
}

// Create instantiates the named backend with the given configuration.
func Create(name string, config *Config) (Backend, error) {
	factoryMu.RLock()
	factory, ok := factories[name]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return factory(config)
}

// Available returns the registered backend names.
func Available() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

func init() {
	Register("memory", NewMemoryBackendFromConfig)
	Register("pebble", NewPebbleBackendFromConfig)
	Register("leveldb", NewLevelDBBackendFromConfig)
}
