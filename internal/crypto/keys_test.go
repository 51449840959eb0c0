package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	assert.Len(t, kp.Secret(), 32)
	pub := kp.PublicKey()
	assert.Len(t, pub, 33)
	assert.Contains(t, []byte{0x02, 0x03}, pub[0])
	assert.False(t, kp.AccountID().IsZero())
}

func TestKeyPairFromSecretRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	restored, err := KeyPairFromSecret(kp.Secret())
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), restored.PublicKey())
	assert.Equal(t, kp.AccountID(), restored.AccountID())
}

func TestKeyPairFromSecretRejectsBadInput(t *testing.T) {
	_, err := KeyPairFromSecret([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = KeyPairFromSecret(make([]byte, 32))
	assert.Error(t, err)
}

func TestCalcAccountIDIsDeterministic(t *testing.T) {
	pub := []byte{0x02, 0xaa, 0xbb}
	assert.Equal(t, CalcAccountID(pub), CalcAccountID(pub))
	assert.NotEqual(t, CalcAccountID(pub), CalcAccountID([]byte{0x03, 0xaa, 0xbb}))
}

func TestSecureErase(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	SecureErase(b)
	assert.True(t, bytes.Equal(b, make([]byte, 4)))

	SecureErase(nil) // must not panic
}
