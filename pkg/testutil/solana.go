package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

// GenerateSolanaKeypair returns a new random signing key.
func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, private, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return private
}

// GenerateSolanaKeys returns n random public keys, for accounts that never
// sign.
func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := range keys {
		keys[i] = GenerateSolanaKeypair(t).Public().(ed25519.PublicKey)
	}
	return keys
}
