// Package addresscodec renders account identifiers as base58check strings.
//
// An address is base58(version byte || 20-byte account ID || checksum)
// where the checksum is the first four bytes of a double SHA-256 over the
// version and ID. The version byte keeps levyd addresses visually distinct
// from raw hex and from other networks' encodings.
package addresscodec

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/levyledger/levyd/internal/types"
)

const (
	// AccountVersion prefixes encoded account IDs.
	AccountVersion byte = 0x30

	// SecretVersion prefixes encoded 32-byte private scalars.
	SecretVersion byte = 0xB0

	checksumSize = 4
)

// ErrChecksum is returned when an address fails its checksum.
var ErrChecksum = errors.New("addresscodec: bad checksum")

// ErrFormat is returned for addresses that are not well-formed base58check.
var ErrFormat = errors.New("addresscodec: bad format")

// EncodeAccountID renders an account ID as an address string.
func EncodeAccountID(id types.AccountID) string {
	return encodeChecked(AccountVersion, id[:])
}

// DecodeAccountID parses an address string back into an account ID.
func DecodeAccountID(address string) (types.AccountID, error) {
	payload, err := decodeChecked(address, AccountVersion, types.AccountIDSize)
	if err != nil {
		return types.AccountID{}, err
	}
	var id types.AccountID
	copy(id[:], payload)
	return id, nil
}

// IsValidAddress reports whether address decodes to an account ID.
func IsValidAddress(address string) bool {
	_, err := DecodeAccountID(address)
	return err == nil
}

// ParseAccountID accepts an account in either rendering levyd uses: the
// base58check address or the 40-character hex ID.
func ParseAccountID(s string) (types.AccountID, error) {
	if id, err := DecodeAccountID(s); err == nil {
		return id, nil
	}
	id, err := types.AccountIDFromHex(s)
	if err != nil {
		return types.AccountID{}, fmt.Errorf("addresscodec: %q is not a valid address or account ID", s)
	}
	return id, nil
}

// EncodeSecret renders a 32-byte private scalar as a checked string.
func EncodeSecret(secret []byte) (string, error) {
	if len(secret) != 32 {
		return "", fmt.Errorf("addresscodec: secret must be 32 bytes, got %d", len(secret))
	}
	return encodeChecked(SecretVersion, secret), nil
}

// DecodeSecret parses a checked secret string back into the 32-byte scalar.
func DecodeSecret(s string) ([]byte, error) {
	return decodeChecked(s, SecretVersion, 32)
}

func encodeChecked(version byte, payload []byte) string {
	data := make([]byte, 0, 1+len(payload)+checksumSize)
	data = append(data, version)
	data = append(data, payload...)
	sum := checksum(data)
	data = append(data, sum[:]...)
	return base58.Encode(data)
}

func decodeChecked(s string, version byte, payloadLen int) ([]byte, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return nil, ErrFormat
	}
	if len(data) != 1+payloadLen+checksumSize {
		return nil, ErrFormat
	}
	body, tail := data[:len(data)-checksumSize], data[len(data)-checksumSize:]
	sum := checksum(body)
	if !bytes.Equal(sum[:], tail) {
		return nil, ErrChecksum
	}
	if body[0] != version {
		return nil, fmt.Errorf("addresscodec: version byte 0x%02X, want 0x%02X", body[0], version)
	}
	return body[1:], nil
}

func checksum(data []byte) [checksumSize]byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	var sum [checksumSize]byte
	copy(sum[:], second[:checksumSize])
	return sum
}
