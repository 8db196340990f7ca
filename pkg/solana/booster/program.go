// Package booster binds the booster store program: its account records,
// program derived addresses and instructions.
package booster

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana/system"
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
	ErrInvalidBoosterType     = errors.New("invalid booster type")
	ErrInvalidPackSize        = errors.New("invalid pack size")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("8rxfkBTxcmMVumfJjxcTSfUxM91GBEFc97kQjLQNZY5v")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID = system.ProgramKey
)

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
