package statestore

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// cborHandle is the shared CBOR configuration for stored records.
// Canonical ordering keeps encodings stable across processes.
var cborHandle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

// Marshal encodes a record to canonical CBOR.
func Marshal(v interface{}) ([]byte, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, cborHandle)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return out, nil
}

// Unmarshal decodes a CBOR record.
func Unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, cborHandle)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}

// DB wraps a Backend with value framing: every stored value carries a flag
// byte and, when beneficial, an lz4-compressed body. Callers see only the
// logical value.
type DB struct {
	backend     Backend
	compressor  Compressor
	minCompress int
}

// Open creates the configured backend, opens it and wraps it in a DB.
func Open(config *Config) (*DB, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	backend, err := Create(config.Backend, config)
	if err != nil {
		return nil, err
	}
	if err := backend.Open(config.CreateIfMissing); err != nil {
		return nil, err
	}

	compressor, err := GetCompressor(config.Compressor)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &DB{
		backend:     backend,
		compressor:  compressor,
		minCompress: config.CompressionMin,
	}, nil
}

// NewDB wraps an already-open backend; used by tests.
func NewDB(backend Backend, compressor Compressor, minCompress int) *DB {
	return &DB{backend: backend, compressor: compressor, minCompress: minCompress}
}

// Get retrieves and unframes the value for key.
func (d *DB) Get(key []byte) ([]byte, error) {
	stored, err := d.backend.Get(key)
	if err != nil {
		return nil, err
	}
	return decodeFrame(d.compressor, stored)
}

// Put frames and stores the value under key.
func (d *DB) Put(key, value []byte) error {
	framed, err := encodeFrame(d.compressor, d.minCompress, value)
	if err != nil {
		return err
	}
	return d.backend.Put(key, framed)
}

// Delete removes the key.
func (d *DB) Delete(key []byte) error {
	return d.backend.Delete(key)
}

// Commit frames every put in ops and applies the batch atomically.
func (d *DB) Commit(ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	framed := make([]BatchOp, len(ops))
	for i, op := range ops {
		framed[i] = op
		if op.Type == BatchPut {
			value, err := encodeFrame(d.compressor, d.minCompress, op.Value)
			if err != nil {
				return err
			}
			framed[i].Value = value
		}
	}
	return d.backend.WriteBatch(framed)
}

// ForEach iterates over every key with the given prefix, handing the
// callback unframed values.
func (d *DB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return d.backend.ForEach(prefix, func(key, stored []byte) error {
		value, err := decodeFrame(d.compressor, stored)
		if err != nil {
			return fmt.Errorf("key %x: %w", key, err)
		}
		return fn(key, value)
	})
}

// Sync forces pending writes to stable storage.
func (d *DB) Sync() error {
	return d.backend.Sync()
}

// Close closes the underlying backend.
func (d *DB) Close() error {
	return d.backend.Close()
}

// Name returns the underlying backend name.
func (d *DB) Name() string {
	return d.backend.Name()
}

// Stats returns the underlying backend counters.
func (d *DB) Stats() Stats {
	return d.backend.Stats()
}
