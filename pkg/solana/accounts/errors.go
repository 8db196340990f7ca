package accounts

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrMalformed = errors.New("malformed account data")
	ErrTransport = errors.New("ledger transport failure")
	ErrRejected  = errors.New("transaction rejected")
	ErrNotSigned = errors.New("transaction is not fully signed")
)

// MalformedError indicates account data could not be decoded as the
// requested record type. It unwraps to the underlying decode error.
type MalformedError struct {
	Address ed25519.PublicKey
	Err     error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed account %s: %v", base58.Encode(e.Address), e.Err)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// TransportError indicates the ledger could not be reached, or failed in a
// way unrelated to the request. Callers may retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError indicates the node refused a transaction. The RPC code and
// message are carried verbatim, along with the on-chain error when the node
// reported one.
type RejectedError struct {
	Code             int
	Message          string
	TransactionError *solana.TransactionError
}

func (e *RejectedError) Error() string {
	if e.TransactionError != nil {
		return fmt.Sprintf("transaction rejected (%d): %s: %s", e.Code, e.Message, e.TransactionError.Error())
	}
	return fmt.Sprintf("transaction rejected (%d): %s", e.Code, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectedError) Unwrap() error {
	if e.TransactionError == nil {
		return nil
	}
	return e.TransactionError
}

// CustomErrorCode returns the program specific error code, if any.
func (e *RejectedError) CustomErrorCode() (int, bool) {
	if e.TransactionError == nil {
		return 0, false
	}
	return e.TransactionError.CustomErrorCode()
}
