package solana

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana/binary"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta represents the account information required
// for building transactions.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
	isPayer    bool
}

// NewAccountMeta creates a new AccountMeta representing a writable
// account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: true,
	}
}

// NewReadonlyAccountMeta creates a new AccountMeta representing a readonly
// account.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{
		PublicKey:  pub,
		IsSigner:   isSigner,
		IsWritable: false,
	}
}

// rank orders accounts into the four message sections. The fee payer is
// always first.
func (m AccountMeta) rank() int {
	switch {
	case m.isPayer:
		return 0
	case m.IsSigner && m.IsWritable:
		return 1
	case m.IsSigner:
		return 2
	case m.IsWritable:
		return 3
	default:
		return 4
	}
}

// SortableAccountMeta sorts accounts by message section. It is meant to be
// used with sort.Stable so that accounts within a section keep the order in
// which they were first referenced.
//
// Reference: https://docs.solana.com/developing/programming-model/transactions#account-addresses-format
type SortableAccountMeta []AccountMeta

// Len is the number of elements in the collection.
func (s SortableAccountMeta) Len() int {
	return len(s)
}

// Less reports whether the element with
// index i should sort before the element with index j.
func (s SortableAccountMeta) Less(i int, j int) bool {
	return s[i].rank() < s[j].rank()
}

// Swap swaps the elements with indexes i and j.
func (s SortableAccountMeta) Swap(i int, j int) {
	s[i], s[j] = s[j], s[i]
}

// Instruction represents a transaction instruction.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

// NewInstruction creates a new instruction.
func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}
}

// NewProgramInstruction creates an instruction whose data is the
// discriminator followed by the encoded arguments.
//
// Accounts are kept exactly in the order given. Whether that order matches
// what the program expects is up to the caller.
func NewProgramInstruction(program ed25519.PublicKey, discriminator []byte, accounts []AccountMeta, args ...binary.Field) Instruction {
	copied := make([]AccountMeta, len(accounts))
	copy(copied, accounts)

	return Instruction{
		Program:  program,
		Accounts: copied,
		Data:     binary.Encode(discriminator, args...),
	}
}

// CompiledInstruction represents an instruction that has been compiled into a transaction.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}
