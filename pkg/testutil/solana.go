package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-boost/pkg/solana"
)

func GenerateSolanaKeypair(t *testing.T) ed25519.PrivateKey {
	_, p, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return p
}

func GenerateSolanaKey(t *testing.T) ed25519.PublicKey {
	return GenerateSolanaKeys(t, 1)[0]
}

func GenerateSolanaKeys(t *testing.T, n int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, n)
	for i := 0; i < n; i++ {
		p, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = p
	}
	return keys
}

// SignTransaction fills every signature slot that belongs to one of keys.
func SignTransaction(t *testing.T, unsigned []byte, keys ...ed25519.PrivateKey) []byte {
	var txn solana.Transaction
	require.NoError(t, txn.Unmarshal(unsigned))

	message := txn.Message.Marshal()
	for i, signer := range txn.Signers() {
		for _, key := range keys {
			if signer.Equal(key.Public()) {
				copy(txn.Signatures[i][:], ed25519.Sign(key, message))
			}
		}
	}
	return txn.Marshal()
}
