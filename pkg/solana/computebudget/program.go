package computebudget

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/binary"
)

// ComputeBudget111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

const (
	commandRequestUnits uint8 = iota
	commandRequestHeapFrame
	commandSetComputeUnitLimit
	commandSetComputeUnitPrice
)

// SetComputeUnitLimit caps the compute units the transaction may consume.
func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	return solana.NewProgramInstruction(
		ProgramKey,
		[]byte{commandSetComputeUnitLimit},
		nil,
		binary.Uint32(&computeUnitLimit),
	)
}

// SetComputeUnitPrice sets the priority fee, in micro-lamports per compute
// unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	return solana.NewProgramInstruction(
		ProgramKey,
		[]byte{commandSetComputeUnitPrice},
		nil,
		binary.Uint64(&microLamports),
	)
}

// PriorityFee returns the instructions that request a compute unit limit and
// price. Zero values are omitted.
func PriorityFee(computeUnitLimit uint32, microLamports uint64) []solana.Instruction {
	var ixns []solana.Instruction
	if computeUnitLimit > 0 {
		ixns = append(ixns, SetComputeUnitLimit(computeUnitLimit))
	}
	if microLamports > 0 {
		ixns = append(ixns, SetComputeUnitPrice(microLamports))
	}
	return ixns
}

func ParseSetComputeUnitLimitIxnData(data []byte) (uint32, error) {
	if len(data) != 5 {
		return 0, errors.New("invalid length")
	}

	var v uint32
	if err := binary.Decode(data, []byte{commandSetComputeUnitLimit}, binary.Uint32(&v)); err != nil {
		return 0, errors.Wrap(err, "invalid instruction")
	}
	return v, nil
}

func ParseSetComputeUnitPriceIxnData(data []byte) (uint64, error) {
	if len(data) != 9 {
		return 0, errors.New("invalid length")
	}

	var v uint64
	if err := binary.Decode(data, []byte{commandSetComputeUnitPrice}, binary.Uint64(&v)); err != nil {
		return 0, errors.Wrap(err, "invalid instruction")
	}
	return v, nil
}

// IsComputeBudgetInstruction reports whether a compiled instruction targets
// this program.
func IsComputeBudgetInstruction(m solana.Message, index int) bool {
	if index >= len(m.Instructions) {
		return false
	}
	return bytes.Equal(m.Accounts[m.Instructions[index].ProgramIndex], ProgramKey)
}
