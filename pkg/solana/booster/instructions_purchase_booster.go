package booster

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/binary"
)

// sha256("global:purchase_booster")[:8]
var PurchaseBoosterInstructionDiscriminator = []byte{0xfb, 0x31, 0x0b, 0x9c, 0x44, 0xc2, 0x15, 0x8c}

const (
	PurchaseBoosterInstructionArgsSize = (1 + // booster_type
		4) // duration_hours

	purchaseBoosterInstructionAccountCount = 5
)

type PurchaseBoosterInstructionArgs struct {
	BoosterType   BoosterType
	DurationHours uint32
}

func (args *PurchaseBoosterInstructionArgs) fields() []binary.Field {
	return []binary.Field{
		binary.Uint8((*uint8)(&args.BoosterType)),
		binary.Uint32(&args.DurationHours),
	}
}

type PurchaseBoosterInstructionAccounts struct {
	StoreConfig ed25519.PublicKey
	Booster     ed25519.PublicKey
	Buyer       ed25519.PublicKey
	Treasury    ed25519.PublicKey
}

func NewPurchaseBoosterInstruction(
	program ed25519.PublicKey,
	accounts *PurchaseBoosterInstructionAccounts,
	args *PurchaseBoosterInstructionArgs,
) solana.Instruction {
	return solana.NewProgramInstruction(
		program,
		PurchaseBoosterInstructionDiscriminator,
		[]solana.AccountMeta{
			{
				PublicKey:  accounts.StoreConfig,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Booster,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Buyer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Treasury,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  SYSTEM_PROGRAM_ID,
				IsWritable: false,
				IsSigner:   false,
			},
		},
		args.fields()...,
	)
}

// DecompilePurchaseBoosterInstruction extracts a purchase booster instruction
// from a compiled message.
func DecompilePurchaseBoosterInstruction(program ed25519.PublicKey, m solana.Message, index int) (*PurchaseBoosterInstructionAccounts, *PurchaseBoosterInstructionArgs, error) {
	i, err := compiledInstruction(program, m, index)
	if err != nil {
		return nil, nil, err
	}

	var args PurchaseBoosterInstructionArgs
	if err := binary.Decode(i.Data, PurchaseBoosterInstructionDiscriminator, args.fields()...); err != nil {
		return nil, nil, errors.Wrap(solana.ErrIncorrectInstruction, err.Error())
	}
	if len(i.Accounts) != purchaseBoosterInstructionAccountCount {
		return nil, nil, errors.Wrapf(ErrInvalidInstructionData, "expected %d accounts, got %d", purchaseBoosterInstructionAccountCount, len(i.Accounts))
	}

	return &PurchaseBoosterInstructionAccounts{
		StoreConfig: m.Accounts[i.Accounts[0]],
		Booster:     m.Accounts[i.Accounts[1]],
		Buyer:       m.Accounts[i.Accounts[2]],
		Treasury:    m.Accounts[i.Accounts[3]],
	}, &args, nil
}

func compiledInstruction(program ed25519.PublicKey, m solana.Message, index int) (*solana.CompiledInstruction, error) {
	if index < 0 || index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if !bytes.Equal(m.Accounts[i.ProgramIndex], program) {
		return nil, solana.ErrIncorrectProgram
	}
	return &i, nil
}
