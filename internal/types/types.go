// Package types defines the primitive identifiers shared across levyd:
// account IDs and asset identities.
package types

import (
	"encoding/hex"
	"fmt"
)

// AccountIDSize is the size of an account identifier in bytes.
const AccountIDSize = 20

// AccountID is a 160-bit account identifier. The zero value is reserved and
// never owned by a participant; it is used as the "no account" sentinel.
type AccountID [AccountIDSize]byte

// ZeroAccount is the reserved all-zero account ID.
var ZeroAccount AccountID

// AccountIDFromBytes creates an account ID from a byte slice.
// Returns an error if the slice is not exactly 20 bytes.
func AccountIDFromBytes(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != AccountIDSize {
		return id, fmt.Errorf("account ID must be %d bytes, got %d", AccountIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// AccountIDFromHex parses a 40-character hex string into an account ID.
func AccountIDFromHex(s string) (AccountID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid account ID hex: %w", err)
	}
	return AccountIDFromBytes(b)
}

// IsZero returns true if the account ID is the reserved zero value.
func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}

// Bytes returns the account ID as a byte slice.
func (a AccountID) Bytes() []byte {
	return a[:]
}

// String returns the hex representation of the account ID.
// Human-facing address rendering lives in the address codec.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText renders the account ID as lowercase hex, so JSON payloads
// carry account strings rather than byte arrays.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the hex form produced by MarshalText.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := AccountIDFromHex(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// Asset identifies a fungible asset. The ledger's own asset (the native
// asset) is configured at genesis; every other identity names an external
// asset reachable only through the exchange adapter.
type Asset string

// Validate checks that the asset identity is usable as a storage key.
func (a Asset) Validate() error {
	if a == "" {
		return fmt.Errorf("asset identity must not be empty")
	}
	if len(a) > 64 {
		return fmt.Errorf("asset identity too long: %d bytes", len(a))
	}
	return nil
}

func (a Asset) String() string {
	return string(a)
}
