package testing

import (
	"crypto/sha512"

	"github.com/levyledger/levyd/internal/codec/addresscodec"
	"github.com/levyledger/levyd/internal/crypto"
	"github.com/levyledger/levyd/internal/types"
)

// Account is a named test identity with a deterministic keypair.
type Account struct {
	// Name is a human-readable identifier for the account (used in test
	// output and assertion messages).
	Name string

	// ID is the 20-byte ledger identity derived from the public key.
	ID types.AccountID

	// Address is the base58check rendering of ID.
	Address string

	keys *crypto.KeyPair
}

// NewAccount creates a test account with a keypair derived from the name.
// The private scalar is the first half of SHA-512(name), so the same name
// always produces the same account and tests stay reproducible.
func NewAccount(name string) *Account {
	hash := sha512.Sum512([]byte(name))
	keys, err := crypto.KeyPairFromSecret(hash[:32])
	if err != nil {
		panic("failed to derive keypair for account " + name + ": " + err.Error())
	}
	id := keys.AccountID()
	return &Account{
		Name:    name,
		ID:      id,
		Address: addresscodec.EncodeAccountID(id),
		keys:    keys,
	}
}

// Keys returns the account's keypair.
func (a *Account) Keys() *crypto.KeyPair {
	return a.keys
}

// Human returns the human-readable address of the account.
// This is equivalent to accessing the Address field directly.
func (a *Account) Human() string {
	return a.Address
}

// String implements the Stringer interface for debugging.
func (a *Account) String() string {
	return a.Name + " (" + a.Address + ")"
}
