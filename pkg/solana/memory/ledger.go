// Package memory provides an in memory solana.Client for tests.
package memory

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/code-boost/pkg/solana"
)

// RPC method names, used to target induced errors.
const (
	MethodGetAccountInfo     = "getAccountInfo"
	MethodGetProgramAccounts = "getProgramAccounts"
	MethodGetLatestBlockhash = "getLatestBlockhash"
	MethodGetSignatureStatus = "getSignatureStatuses"
	MethodSendTransaction    = "sendTransaction"
)

// Mirrors the node's sendTransaction failure codes.
const (
	rpcSignatureVerificationFailure = -32003
	rpcSimulationFailure            = -32002
	rpcInvalidParams                = -32602
)

// Processor executes a submitted transaction against the ledger. Returning a
// TransactionError records the transaction as landed with that error.
// Returning an error rejects the submission outright.
type Processor func(l *Ledger, tx solana.Transaction) (*solana.TransactionError, error)

type account struct {
	info  solana.AccountInfo
	owner string
}

type status struct {
	err   *solana.TransactionError
	polls int
}

// Ledger is a fake cluster. It is safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	accounts  map[string]*account
	statuses  map[solana.Signature]*status
	submitted []solana.Transaction

	blockhash solana.Blockhash
	slot      uint64

	processor       Processor
	simulateErrors  bool
	confirmAfter    int
	finalizeAfter   int
	errors          map[string]error
	errorCountdowns map[string]int
}

// New returns an empty ledger that confirms transactions on the first
// status query.
func New() *Ledger {
	l := &Ledger{}
	l.reset()
	return l
}

func (l *Ledger) reset() {
	l.accounts = make(map[string]*account)
	l.statuses = make(map[solana.Signature]*status)
	l.submitted = nil
	l.blockhash = solana.Blockhash(sha256.Sum256([]byte("genesis")))
	l.slot = 1
	l.processor = nil
	l.simulateErrors = false
	l.confirmAfter = 0
	l.finalizeAfter = 32
	l.errors = make(map[string]error)
	l.errorCountdowns = make(map[string]int)
}

// Reset clears all ledger state and configuration.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset()
}

// SetAccount creates or replaces an account.
func (l *Ledger) SetAccount(address, owner ed25519.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAccount(address, owner, data)
}

func (l *Ledger) setAccount(address, owner ed25519.PublicKey, data []byte) {
	l.accounts[base58.Encode(address)] = &account{
		info: solana.AccountInfo{
			Data:     append([]byte{}, data...),
			Owner:    append(ed25519.PublicKey{}, owner...),
			Lamports: 1,
		},
		owner: base58.Encode(owner),
	}
}

// DeleteAccount removes an account, if it exists.
func (l *Ledger) DeleteAccount(address ed25519.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, base58.Encode(address))
}

// Account returns a copy of an account's data.
func (l *Ledger) Account(address ed25519.PublicKey) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.accounts[base58.Encode(address)]
	if !ok {
		return nil, false
	}
	return append([]byte{}, a.info.Data...), true
}

// AdvanceBlockhash moves the ledger to a new recent blockhash.
func (l *Ledger) AdvanceBlockhash() solana.Blockhash {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.slot++
	l.blockhash = solana.Blockhash(sha256.Sum256(l.blockhash[:]))
	return l.blockhash
}

// SetProcessor installs the function that executes submitted transactions.
//
// When simulate is true, transactions that the processor fails are rejected
// at submission like a node running preflight would. Otherwise they land
// with an error that is only observable through their status.
func (l *Ledger) SetProcessor(p Processor, simulate bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processor = p
	l.simulateErrors = simulate
}

// SetConfirmationDelay sets how many status polls a transaction reports as
// processed before reaching confirmed.
func (l *Ledger) SetConfirmationDelay(polls int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmAfter = polls
}

// InduceError makes every call of method fail with err, until cleared with a
// nil error.
func (l *Ledger) InduceError(method string, err error) {
	l.InduceErrorN(method, err, -1)
}

// InduceErrorN makes the next n calls of method fail with err. A negative n
// fails every call.
func (l *Ledger) InduceErrorN(method string, err error, n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		delete(l.errors, method)
		delete(l.errorCountdowns, method)
		return
	}
	l.errors[method] = err
	l.errorCountdowns[method] = n
}

// Submitted returns every transaction accepted by the ledger, in order.
func (l *Ledger) Submitted() []solana.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]solana.Transaction{}, l.submitted...)
}

func (l *Ledger) induced(method string) error {
	err, ok := l.errors[method]
	if !ok {
		return nil
	}

	switch remaining := l.errorCountdowns[method]; {
	case remaining < 0:
	case remaining <= 1:
		delete(l.errors, method)
		delete(l.errorCountdowns, method)
	default:
		l.errorCountdowns[method] = remaining - 1
	}
	return err
}

// GetAccountInfo implements solana.Client.GetAccountInfo.
func (l *Ledger) GetAccountInfo(ctx context.Context, address ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return solana.AccountInfo{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.induced(MethodGetAccountInfo); err != nil {
		return solana.AccountInfo{}, err
	}

	a, ok := l.accounts[base58.Encode(address)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return cloneInfo(a.info), nil
}

// GetProgramAccounts implements solana.Client.GetProgramAccounts.
func (l *Ledger) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, _ solana.Commitment, filters ...solana.MemcmpFilter) ([]solana.ProgramAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.induced(MethodGetProgramAccounts); err != nil {
		return nil, err
	}

	owner := base58.Encode(program)

	var res []solana.ProgramAccount
	for address, a := range l.accounts {
		if a.owner != owner {
			continue
		}

		matches := true
		for _, f := range filters {
			if !f.Matches(a.info.Data) {
				matches = false
				break
			}
		}
		if !matches {
			continue
		}

		pub, _ := base58.Decode(address)
		res = append(res, solana.ProgramAccount{
			PublicKey: pub,
			Account:   cloneInfo(a.info),
		})
	}
	return res, nil
}

// GetLatestBlockhash implements solana.Client.GetLatestBlockhash.
func (l *Ledger) GetLatestBlockhash(ctx context.Context) (solana.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Blockhash{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.induced(MethodGetLatestBlockhash); err != nil {
		return solana.Blockhash{}, err
	}
	return l.blockhash, nil
}

// GetSignatureStatus implements solana.Client.GetSignatureStatus.
func (l *Ledger) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.induced(MethodGetSignatureStatus); err != nil {
		return nil, err
	}

	s, ok := l.statuses[sig]
	if !ok {
		return nil, solana.ErrSignatureNotFound
	}
	s.polls++

	confirmations := s.polls - l.confirmAfter
	if confirmations < 0 {
		confirmations = 0
	}

	res := &solana.SignatureStatus{
		Slot:          l.slot,
		ErrorResult:   s.err,
		Confirmations: &confirmations,
	}
	switch {
	case confirmations >= l.finalizeAfter:
		res.Confirmations = nil
		res.ConfirmationStatus = "finalized"
	case confirmations >= 1:
		res.ConfirmationStatus = "confirmed"
	default:
		res.ConfirmationStatus = "processed"
	}
	return res, nil
}

// SubmitTransaction implements solana.Client.SubmitTransaction.
func (l *Ledger) SubmitTransaction(ctx context.Context, signed []byte, _ solana.Commitment) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.induced(MethodSendTransaction); err != nil {
		return solana.Signature{}, err
	}

	var tx solana.Transaction
	if err := tx.Unmarshal(signed); err != nil {
		return solana.Signature{}, &jsonrpc.RPCError{
			Code:    rpcInvalidParams,
			Message: "failed to deserialize transaction: " + err.Error(),
		}
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, &jsonrpc.RPCError{
			Code:    rpcSignatureVerificationFailure,
			Message: "Transaction signature verification failure",
		}
	}
	if tx.Message.RecentBlockhash != l.blockhash {
		txErr := solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
		return solana.Signature{}, simulationFailure(txErr)
	}

	sig := tx.Signature()
	if _, ok := l.statuses[sig]; ok {
		txErr := solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
		return solana.Signature{}, simulationFailure(txErr)
	}

	var txErr *solana.TransactionError
	if l.processor != nil {
		var err error
		if txErr, err = l.processor(l, tx); err != nil {
			return solana.Signature{}, err
		}
		if txErr != nil && l.simulateErrors {
			return solana.Signature{}, simulationFailure(txErr)
		}
	}

	l.statuses[sig] = &status{err: txErr}
	l.submitted = append(l.submitted, tx)
	return sig, nil
}

// SetAccountLocked is SetAccount for use inside a Processor, which runs with
// the ledger lock held.
func (l *Ledger) SetAccountLocked(address, owner ed25519.PublicKey, data []byte) {
	l.setAccount(address, owner, data)
}

// AccountLocked is Account for use inside a Processor.
func (l *Ledger) AccountLocked(address ed25519.PublicKey) ([]byte, bool) {
	a, ok := l.accounts[base58.Encode(address)]
	if !ok {
		return nil, false
	}
	return append([]byte{}, a.info.Data...), true
}

func simulationFailure(txErr *solana.TransactionError) error {
	raw, _ := txErr.JSONString()
	return &jsonrpc.RPCError{
		Code:    rpcSimulationFailure,
		Message: "Transaction simulation failed: " + txErr.Error(),
		Data: map[string]interface{}{
			"err": rawError(raw),
		},
	}
}

func rawError(encoded string) interface{} {
	var v interface{}
	d := json.NewDecoder(strings.NewReader(encoded))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return encoded
	}
	return v
}

func cloneInfo(info solana.AccountInfo) solana.AccountInfo {
	return solana.AccountInfo{
		Data:       append([]byte{}, info.Data...),
		Owner:      append(ed25519.PublicKey{}, info.Owner...),
		Lamports:   info.Lamports,
		Executable: info.Executable,
	}
}
