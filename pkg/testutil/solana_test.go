package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/memo"
)

func TestSignTransaction(t *testing.T) {
	payer := GenerateSolanaKeypair(t)
	other := GenerateSolanaKeypair(t)

	txn, err := solana.Compile(payer.Public().(ed25519.PublicKey), solana.Blockhash{1}, memo.Instruction("hello"))
	require.NoError(t, err)
	unsigned := txn.Marshal()

	var signed solana.Transaction
	require.NoError(t, signed.Unmarshal(SignTransaction(t, unsigned, other)))
	assert.False(t, signed.Signed())

	require.NoError(t, signed.Unmarshal(SignTransaction(t, unsigned, other, payer)))
	assert.True(t, signed.Signed())
	assert.NoError(t, signed.VerifySignatures())
}

func TestGenerateSolanaKeys(t *testing.T) {
	keys := GenerateSolanaKeys(t, 3)
	require.Len(t, keys, 3)
	assert.NotEqual(t, keys[0], keys[1])
	assert.Len(t, GenerateSolanaKey(t), 32)
}
