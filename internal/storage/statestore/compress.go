package statestore

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4"
)

// Compressor is a block compression algorithm used for stored values.
type Compressor interface {
	// Name returns the name of the compression algorithm.
	Name() string

	// Compress compresses src. Returns nil (not an error) when the data is
	// incompressible and should be stored raw.
	Compress(src []byte) ([]byte, error)

	// Decompress decompresses src into a buffer of originalSize bytes.
	Decompress(src []byte, originalSize int) ([]byte, error)
}

// CompressorFactory creates a compressor instance.
type CompressorFactory func() Compressor

var (
	compressorMu sync.RWMutex
	compressors  = make(map[string]CompressorFactory)
)

// RegisterCompressor registers a compressor factory with the given name.
func RegisterCompressor(name string, factory CompressorFactory) {
	compressorMu.Lock()
	defer compressorMu.Unlock()
	compressors[name] = factory
}

// GetCompressor returns a new compressor instance for the given name.
func GetCompressor(name string) (Compressor, error) {
	compressorMu.RLock()
	factory, ok := compressors[name]
	compressorMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown compressor: %s", name)
	}
	return factory(), nil
}

// IsCompressorAvailable checks if a compressor with the given name exists.
func IsCompressorAvailable(name string) bool {
	compressorMu.RLock()
	_, ok := compressors[name]
	compressorMu.RUnlock()
	return ok
}

func init() {
	RegisterCompressor("none", func() Compressor { return noCompressor{} })
	RegisterCompressor("lz4", func() Compressor { return lz4Compressor{} })
}

// noCompressor stores everything raw.
type noCompressor struct{}

func (noCompressor) Name() string { return "none" }

func (noCompressor) Compress(src []byte) ([]byte, error) {
	return nil, nil
}

func (noCompressor) Decompress(src []byte, originalSize int) ([]byte, error) {
	// A compressed frame under the "none" compressor means the store was
	// written with a different setting.
	return nil, fmt.Errorf("compressed value in a store configured without compression")
}

// lz4Compressor implements LZ4 block compression.
type lz4Compressor struct{}

func (lz4Compressor) Name() string { return "lz4" }

func (lz4Compressor) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	// n == 0 means incompressible; storing raw beats growing the value.
	if n == 0 || n >= len(src) {
		return nil, nil
	}
	return dst[:n], nil
}

func (lz4Compressor) Decompress(src []byte, originalSize int) ([]byte, error) {
	dst := make([]byte, originalSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	return dst[:n], nil
}

// Value framing. Every stored value carries a one-byte flag; compressed
// values additionally carry the original length so decompression can size
// its buffer exactly.
const (
	frameRaw        = 0x00
	frameCompressed = 0x01

	compressedHeaderSize = 1 + 4 // flag + original length
)

// encodeFrame wraps a value for storage, compressing when the compressor
// accepts it and the value meets the minimum size.
func encodeFrame(c Compressor, minSize int, value []byte) ([]byte, error) {
	if c != nil && len(value) >= minSize {
		compressed, err := c.Compress(value)
		if err != nil {
			return nil, err
		}
		if compressed != nil {
			out := make([]byte, compressedHeaderSize+len(compressed))
			out[0] = frameCompressed
			binary.BigEndian.PutUint32(out[1:5], uint32(len(value)))
			copy(out[compressedHeaderSize:], compressed)
			return out, nil
		}
	}
	out := make([]byte, 1+len(value))
	out[0] = frameRaw
	copy(out[1:], value)
	return out, nil
}

// decodeFrame unwraps a stored value.
func decodeFrame(c Compressor, stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrCorrupt)
	}
	switch stored[0] {
	case frameRaw:
		out := make([]byte, len(stored)-1)
		copy(out, stored[1:])
		return out, nil
	case frameCompressed:
		if len(stored) < compressedHeaderSize {
			return nil, fmt.Errorf("%w: truncated frame header", ErrCorrupt)
		}
		originalSize := int(binary.BigEndian.Uint32(stored[1:5]))
		if c == nil {
			return nil, fmt.Errorf("%w: compressed value without compressor", ErrCorrupt)
		}
		out, err := c.Decompress(stored[compressedHeaderSize:], originalSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame flag 0x%02x", ErrCorrupt, stored[0])
	}
}
