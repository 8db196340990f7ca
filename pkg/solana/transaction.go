package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232

	// Account indices are encoded as a single byte.
	maxAccounts = 256
)

var (
	ErrNoInstructions      = errors.New("transaction has no instructions")
	ErrTooManyAccounts     = errors.New("transaction references too many accounts")
	ErrTransactionTooLarge = errors.New("transaction exceeds max size")
	ErrInvalidAccount      = errors.New("invalid account public key")
	ErrInvalidSignature    = errors.New("invalid signature")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

// Transaction is a compiled message along with one signature slot per
// required signer. Slots are zeroed until an external signer fills them in.
type Transaction struct {
	Signatures []Signature
	Message    Message
}

// Compile assembles an unsigned transaction from the provided instructions.
//
// Accounts are deduplicated in the order they are first referenced (fee
// payer first, then each instruction's accounts followed by its program),
// with signer and writable flags promoted across references. They are then
// partitioned into writable signers, readonly signers, writable non-signers
// and readonly non-signers, preserving first-seen order within each group.
func Compile(feePayer ed25519.PublicKey, recentBlockhash Blockhash, instructions ...Instruction) (Transaction, error) {
	if len(instructions) == 0 {
		return Transaction{}, ErrNoInstructions
	}

	accounts := []AccountMeta{
		{
			PublicKey:  feePayer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}
	for _, i := range instructions {
		accounts = append(accounts, i.Accounts...)
		accounts = append(accounts, AccountMeta{
			PublicKey: i.Program,
		})
	}

	for _, a := range accounts {
		if len(a.PublicKey) != ed25519.PublicKeySize {
			return Transaction{}, errors.Wrapf(ErrInvalidAccount, "length %d", len(a.PublicKey))
		}
	}

	accounts = filterUnique(accounts)
	if len(accounts) > maxAccounts {
		return Transaction{}, errors.Wrapf(ErrTooManyAccounts, "%d accounts", len(accounts))
	}
	sort.Stable(SortableAccountMeta(accounts))

	var m Message
	m.RecentBlockhash = recentBlockhash
	for _, account := range accounts {
		m.Accounts = append(m.Accounts, account.PublicKey)

		if account.IsSigner {
			m.Header.NumSignatures++

			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			m.Header.NumReadOnly++
		}
	}

	// Generate the compiled instruction, which uses indices instead
	// of raw account keys.
	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, i.Program)),
			Accounts:     make([]byte, 0, len(i.Accounts)),
			Data:         i.Data,
		}

		for _, a := range i.Accounts {
			c.Accounts = append(c.Accounts, byte(indexOf(m.Accounts, a.PublicKey)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	tx := Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}

	if size := len(tx.Marshal()); size > MaxTransactionSize {
		return Transaction{}, errors.Wrapf(ErrTransactionTooLarge, "%d bytes", size)
	}

	return tx, nil
}

// Signature returns the first signature, which identifies the transaction
// on chain.
func (t *Transaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

// Signers returns the accounts that must sign the transaction, in signature
// slot order.
func (t *Transaction) Signers() []ed25519.PublicKey {
	n := int(t.Message.Header.NumSignatures)
	if n > len(t.Message.Accounts) {
		n = len(t.Message.Accounts)
	}
	return t.Message.Accounts[:n]
}

// Signed reports whether every required signer has a filled signature slot.
func (t *Transaction) Signed() bool {
	if len(t.Signatures) == 0 || len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return false
	}

	var empty Signature
	for _, s := range t.Signatures {
		if s == empty {
			return false
		}
	}
	return true
}

// VerifySignatures checks every signature slot against the message and its
// corresponding signer.
func (t *Transaction) VerifySignatures() error {
	signers := t.Signers()
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) || len(signers) != len(t.Signatures) {
		return errors.Wrapf(ErrInvalidSignature, "have %d signatures for %d signers", len(t.Signatures), t.Message.Header.NumSignatures)
	}

	message := t.Message.Marshal()
	for i, s := range t.Signatures {
		if !ed25519.Verify(signers[i], message, s[:]) {
			return errors.Wrapf(ErrInvalidSignature, "signature %d does not match %s", i, base58.Encode(signers[i]))
		}
	}
	return nil
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, s.String()))
	}
	sb.WriteString("Message:\n")
	sb.WriteString("  Header:\n")
	sb.WriteString(fmt.Sprintf("    NumSignatures: %d\n", t.Message.Header.NumSignatures))
	sb.WriteString(fmt.Sprintf("    NumReadOnly: %d\n", t.Message.Header.NumReadOnly))
	sb.WriteString(fmt.Sprintf("    NumReadOnlySigned: %d\n", t.Message.Header.NumReadonlySigned))
	sb.WriteString(fmt.Sprintf("  RecentBlockhash: %s\n", t.Message.RecentBlockhash.String()))
	sb.WriteString("  Accounts:\n")
	for i, a := range t.Message.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d:\n", i))
		sb.WriteString(fmt.Sprintf("      ProgramIndex: %d\n", t.Message.Instructions[i].ProgramIndex))
		sb.WriteString(fmt.Sprintf("      Accounts: %v\n", t.Message.Instructions[i].Accounts))
		sb.WriteString(fmt.Sprintf("      Data: %v\n", t.Message.Instructions[i].Data))
	}
	return sb.String()
}

func filterUnique(accounts []AccountMeta) []AccountMeta {
	filtered := make([]AccountMeta, 0, len(accounts))

	for i := range accounts {
		for j := range filtered {
			// If we've already seen the account before, then we should check to
			// see if we should promote any of the permissions.
			if bytes.Equal(accounts[i].PublicKey, filtered[j].PublicKey) {
				if accounts[i].IsSigner {
					filtered[j].IsSigner = true
				}
				if accounts[i].IsWritable {
					filtered[j].IsWritable = true
				}
				if accounts[i].isPayer {
					filtered[j].isPayer = true
				}

				goto next
			}
		}

		filtered = append(filtered, accounts[i])
	next:
	}

	return filtered
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}
