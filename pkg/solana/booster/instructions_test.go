package booster

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/memo"
)

func TestPurchaseBoosterInstruction(t *testing.T) {
	accounts := &PurchaseBoosterInstructionAccounts{
		StoreConfig: newKey(t),
		Booster:     newKey(t),
		Buyer:       newKey(t),
		Treasury:    newKey(t),
	}
	args := &PurchaseBoosterInstructionArgs{
		BoosterType:   BoosterTypeCombo,
		DurationHours: 0x01020304,
	}

	ixn := NewPurchaseBoosterInstruction(PROGRAM_ID, accounts, args)
	assert.EqualValues(t, PROGRAM_ID, ixn.Program)
	assert.Equal(t, []byte{0xfb, 0x31, 0x0b, 0x9c, 0x44, 0xc2, 0x15, 0x8c, 2, 4, 3, 2, 1}, ixn.Data)
	assert.Len(t, ixn.Data, 8+PurchaseBoosterInstructionArgsSize)

	require.Len(t, ixn.Accounts, 5)
	expected := []solana.AccountMeta{
		{PublicKey: accounts.StoreConfig, IsWritable: true},
		{PublicKey: accounts.Booster, IsWritable: true},
		{PublicKey: accounts.Buyer, IsWritable: true, IsSigner: true},
		{PublicKey: accounts.Treasury, IsWritable: true},
		{PublicKey: SYSTEM_PROGRAM_ID},
	}
	assert.Equal(t, expected, ixn.Accounts)

	tx, err := solana.Compile(accounts.Buyer, solana.Blockhash{}, memo.Instruction("boost"), ixn)
	require.NoError(t, err)

	_, _, err = DecompilePurchaseBoosterInstruction(PROGRAM_ID, tx.Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	_, _, err = DecompilePurchaseBoosterInstruction(PROGRAM_ID, tx.Message, 2)
	assert.Error(t, err)

	decompiledAccounts, decompiledArgs, err := DecompilePurchaseBoosterInstruction(PROGRAM_ID, tx.Message, 1)
	require.NoError(t, err)
	assert.Equal(t, accounts, decompiledAccounts)
	assert.Equal(t, args, decompiledArgs)

	_, _, err = DecompilePurchasePointsPackInstruction(PROGRAM_ID, tx.Message, 1)
	assert.True(t, errors.Is(err, solana.ErrIncorrectInstruction))
}

func TestPurchasePointsPackInstruction(t *testing.T) {
	accounts := &PurchasePointsPackInstructionAccounts{
		StoreConfig: newKey(t),
		Buyer:       newKey(t),
		Treasury:    newKey(t),
	}
	args := &PurchasePointsPackInstructionArgs{PackSize: PackSizeLarge}

	ixn := NewPurchasePointsPackInstruction(PROGRAM_ID, accounts, args)
	assert.Equal(t, []byte{0x7d, 0x2a, 0x2f, 0xc7, 0x1a, 0x5d, 0xe3, 0x63, 1}, ixn.Data)
	assert.Len(t, ixn.Data, 8+PurchasePointsPackInstructionArgsSize)

	expected := []solana.AccountMeta{
		{PublicKey: accounts.StoreConfig, IsWritable: true},
		{PublicKey: accounts.Buyer, IsWritable: true, IsSigner: true},
		{PublicKey: accounts.Treasury, IsWritable: true},
		{PublicKey: SYSTEM_PROGRAM_ID},
	}
	assert.Equal(t, expected, ixn.Accounts)

	tx, err := solana.Compile(accounts.Buyer, solana.Blockhash{}, ixn)
	require.NoError(t, err)
	assert.EqualValues(t, 1, tx.Message.Header.NumSignatures)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, solana.Signature{}, tx.Signatures[0])

	decompiledAccounts, decompiledArgs, err := DecompilePurchasePointsPackInstruction(PROGRAM_ID, tx.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, accounts, decompiledAccounts)
	assert.Equal(t, args, decompiledArgs)

	_, _, err = DecompilePurchasePointsPackInstruction(newKey(t), tx.Message, 0)
	assert.Equal(t, solana.ErrIncorrectProgram, err)
}
