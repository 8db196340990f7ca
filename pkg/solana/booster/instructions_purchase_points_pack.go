package booster

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/binary"
)

// sha256("global:purchase_points_pack")[:8]
var PurchasePointsPackInstructionDiscriminator = []byte{0x7d, 0x2a, 0x2f, 0xc7, 0x1a, 0x5d, 0xe3, 0x63}

const (
	PurchasePointsPackInstructionArgsSize = 1 // pack_size

	purchasePointsPackInstructionAccountCount = 4
)

type PurchasePointsPackInstructionArgs struct {
	PackSize PackSize
}

func (args *PurchasePointsPackInstructionArgs) fields() []binary.Field {
	return []binary.Field{
		binary.Uint8((*uint8)(&args.PackSize)),
	}
}

type PurchasePointsPackInstructionAccounts struct {
	StoreConfig ed25519.PublicKey
	Buyer       ed25519.PublicKey
	Treasury    ed25519.PublicKey
}

func NewPurchasePointsPackInstruction(
	program ed25519.PublicKey,
	accounts *PurchasePointsPackInstructionAccounts,
	args *PurchasePointsPackInstructionArgs,
) solana.Instruction {
	return solana.NewProgramInstruction(
		program,
		PurchasePointsPackInstructionDiscriminator,
		[]solana.AccountMeta{
			{
				PublicKey:  accounts.StoreConfig,
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

// DecompilePurchasePointsPackInstruction extracts a purchase points pack
// instruction from a compiled message.
func DecompilePurchasePointsPackInstruction(program ed25519.PublicKey, m solana.Message, index int) (*PurchasePointsPackInstructionAccounts, *PurchasePointsPackInstructionArgs, error) {
	i, err := compiledInstruction(program, m, index)
	if err != nil {
		return nil, nil, err
	}

	var args PurchasePointsPackInstructionArgs
	if err := binary.Decode(i.Data, PurchasePointsPackInstructionDiscriminator, args.fields()...); err != nil {
		return nil, nil, errors.Wrap(solana.ErrIncorrectInstruction, err.Error())
	}
	if len(i.Accounts) != purchasePointsPackInstructionAccountCount {
		return nil, nil, errors.Wrapf(ErrInvalidInstructionData, "expected %d accounts, got %d", purchasePointsPackInstructionAccountCount, len(i.Accounts))
	}

	return &PurchasePointsPackInstructionAccounts{
		StoreConfig: m.Accounts[i.Accounts[0]],
		Buyer:       m.Accounts[i.Accounts[1]],
		Treasury:    m.Accounts[i.Accounts[2]],
	}, &args, nil
}
