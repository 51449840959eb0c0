package statestore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, compressor string, minCompress int) *DB {
	t.Helper()
	m := NewMemoryBackend()
	require.NoError(t, m.Open(true))
	t.Cleanup(func() { m.Close() })

	c, err := GetCompressor(compressor)
	require.NoError(t, err)
	return NewDB(m, c, minCompress)
}

func TestDBFrameRoundtrip(t *testing.T) {
	db := openTestDB(t, "lz4", 64)

	tests := []struct {
		name  string
		value []byte
	}{
		{"small stays raw", []byte("short")},
		{"compressible", bytes.Repeat([]byte("levyd state record "), 50)},
		{"empty value", []byte{}},
		{"binary", []byte{0x00, 0x01, 0xff, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := []byte("k-" + tt.name)
			require.NoError(t, db.Put(key, tt.value))

			got, err := db.Get(key)
			require.NoError(t, err)
			require.Equal(t, tt.value, got)
		})
	}
}

func TestDBCompressionShrinksStoredValue(t *testing.T) {
	m := NewMemoryBackend()
	require.NoError(t, m.Open(true))
	defer m.Close()

	c, err := GetCompressor("lz4")
	require.NoError(t, err)
	db := NewDB(m, c, 64)

	value := bytes.Repeat([]byte("aaaaaaaabbbbbbbb"), 64) // 1 KiB, highly repetitive
	require.NoError(t, db.Put([]byte("big"), value))

	stored, err := m.Get([]byte("big"))
	require.NoError(t, err)
	require.Equal(t, byte(frameCompressed), stored[0])
	require.Less(t, len(stored), len(value))

	got, err := db.Get([]byte("big"))
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestDBNoneCompressorStoresRaw(t *testing.T) {
	db := openTestDB(t, "none", 0)

	value := bytes.Repeat([]byte("x"), 512)
	require.NoError(t, db.Put([]byte("k"), value))

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestDBCommitAtomicBatch(t *testing.T) {
	db := openTestDB(t, "lz4", 64)

	require.NoError(t, db.Put([]byte("gone"), []byte("v")))

	ops := []BatchOp{
		{Type: BatchPut, Key: []byte("a"), Value: bytes.Repeat([]byte("ab"), 100)},
		{Type: BatchPut, Key: []byte("b"), Value: []byte("small")},
		{Type: BatchDelete, Key: []byte("gone")},
	}
	require.NoError(t, db.Commit(ops))

	a, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("ab"), 100), a)

	b, err := db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("small"), b)

	_, err = db.Get([]byte("gone"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDBForEachDecodesFrames(t *testing.T) {
	db := openTestDB(t, "lz4", 16)

	require.NoError(t, db.Put([]byte{0x01, 0x01}, bytes.Repeat([]byte("r1"), 32)))
	require.NoError(t, db.Put([]byte{0x01, 0x02}, []byte("r2")))
	require.NoError(t, db.Put([]byte{0x02, 0x01}, []byte("other")))

	got := map[string]string{}
	err := db.ForEach([]byte{0x01}, func(key, value []byte) error {
		got[string(key)] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, string(bytes.Repeat([]byte("r1"), 32)), got[string([]byte{0x01, 0x01})])
}

func TestDecodeFrameCorrupt(t *testing.T) {
	c, err := GetCompressor("lz4")
	require.NoError(t, err)

	_, err = decodeFrame(c, nil)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeFrame(c, []byte{0x77, 0x00})
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeFrame(c, []byte{frameCompressed, 0x00})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestMarshalRoundtrip(t *testing.T) {
	type record struct {
		Name  string `codec:"name"`
		Value uint64 `codec:"value"`
	}

	in := record{Name: "acc", Value: 42}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out record
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, in, out)
}
