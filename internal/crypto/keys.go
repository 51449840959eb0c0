// Package crypto derives account identities from secp256k1 keypairs.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/crypto/ripemd160"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/levyledger/levyd/internal/types"
)

// CalcAccountID computes the account ID for a public key as
// RIPEMD160(SHA256(publicKey)). The whole serialized key is hashed,
// compression prefix included.
func CalcAccountID(publicKey []byte) types.AccountID {
	sha := sha256.Sum256(publicKey)
	h := ripemd160.New()
	h.Write(sha[:])
	var id types.AccountID
	copy(id[:], h.Sum(nil))
	return id
}

// KeyPair is a secp256k1 private key with its derived identity.
type KeyPair struct {
	priv *secp256k1.PrivateKey
}

// GenerateKeyPair creates a keypair from the system entropy source.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromSecret rebuilds a keypair from its 32-byte private scalar.
func KeyPairFromSecret(secret []byte) (*KeyPair, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("secret must be 32 bytes, got %d", len(secret))
	}
	priv := secp256k1.PrivKeyFromBytes(secret)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("secret is not a valid scalar")
	}
	return &KeyPair{priv: priv}, nil
}

// Secret returns the 32-byte private scalar.
func (k *KeyPair) Secret() []byte {
	return k.priv.Serialize()
}

// PublicKey returns the 33-byte compressed public key.
func (k *KeyPair) PublicKey() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// AccountID returns the account identity derived from the public key.
func (k *KeyPair) AccountID() types.AccountID {
	return CalcAccountID(k.PublicKey())
}
