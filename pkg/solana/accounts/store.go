// Package accounts reads typed records from the ledger and submits signed
// transactions to it.
package accounts

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/code-boost/pkg/cache"
	"github.com/code-payments/code-boost/pkg/metrics"
	"github.com/code-payments/code-boost/pkg/solana"
)

const (
	metricsStructName = "accounts.Store"

	defaultSnapshotBudget = 1 << 20
)

// Account is a record that can be decoded from raw account data.
type Account interface {
	Unmarshal(data []byte) error
}

// Addressable records carry the address they were read from. The address is
// not part of the encoded data.
type Addressable interface {
	SetAddress(address ed25519.PublicKey)
}

// KeyedAccount is a decoded record along with its address.
type KeyedAccount[T any] struct {
	Address ed25519.PublicKey
	Account *T
}

// accountPtr constrains FetchMany's type parameter to pointers that decode.
type accountPtr[T any] interface {
	*T
	Account
}

// Store fetches and decodes program accounts, and submits signed
// transactions. It never retries; transport failures are returned to the
// caller as TransportError.
//
// The raw bytes of every successfully decoded account are kept as a snapshot,
// so the most recent view of an account can be re-read without a round trip.
type Store struct {
	log        *logrus.Entry
	client     solana.Client
	commitment solana.Commitment
	snapshots  cache.Cache[[]byte]
}

// Option configures a Store.
type Option func(*Store)

// WithCommitment sets the commitment level used for reads and preflight.
func WithCommitment(commitment solana.Commitment) Option {
	return func(s *Store) {
		s.commitment = commitment
	}
}

// WithSnapshotBudget bounds the total bytes of cached account snapshots.
func WithSnapshotBudget(bytes int) Option {
	return func(s *Store) {
		s.snapshots = cache.NewCache[[]byte](bytes)
	}
}

// NewStore returns a Store backed by client.
func NewStore(client solana.Client, opts ...Option) *Store {
	s := &Store{
		log:        logrus.StandardLogger().WithField("type", "solana/accounts"),
		client:     client,
		commitment: solana.CommitmentConfirmed,
		snapshots:  cache.NewCache[[]byte](defaultSnapshotBudget),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Commitment returns the commitment level the store reads at.
func (s *Store) Commitment() solana.Commitment {
	return s.commitment
}

// FetchOne reads the account at address and decodes it into dst.
//
// It returns ErrNotFound if no account exists, a *MalformedError if the data
// doesn't decode as dst, or a *TransportError if the ledger couldn't be read.
func (s *Store) FetchOne(ctx context.Context, address ed25519.PublicKey, dst Account) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "FetchOne")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	info, err := s.client.GetAccountInfo(ctx, address, s.commitment)
	if errors.Is(err, solana.ErrNoAccountInfo) {
		s.snapshots.Delete(base58.Encode(address))
		return ErrNotFound
	} else if err != nil {
		return &TransportError{Op: "get account info", Err: err}
	}

	return s.decode(address, info.Data, dst)
}

// FetchMany scans every account owned by program that matches all filters,
// and decodes each one as T. Filters are evaluated by the ledger, decoding
// happens locally.
//
// Any account that fails to decode fails the whole scan with a
// *MalformedError, so filters should pin the record's discriminator.
func FetchMany[T any, PT accountPtr[T]](ctx context.Context, s *Store, program ed25519.PublicKey, filters ...solana.MemcmpFilter) (res []KeyedAccount[T], err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "FetchMany")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	accounts, err := s.client.GetProgramAccounts(ctx, program, s.commitment, filters...)
	if err != nil {
		return nil, &TransportError{Op: "get program accounts", Err: err}
	}

	tracer.AddAttribute("accounts", len(accounts))

	res = make([]KeyedAccount[T], 0, len(accounts))
	for _, a := range accounts {
		record := PT(new(T))
		if err := s.decode(a.PublicKey, a.Account.Data, record); err != nil {
			return nil, err
		}

		res = append(res, KeyedAccount[T]{
			Address: a.PublicKey,
			Account: (*T)(record),
		})
	}
	return res, nil
}

// Latest decodes the most recently fetched data for address into dst,
// without contacting the ledger. It returns ErrNotFound if there is no
// snapshot.
func (s *Store) Latest(address ed25519.PublicKey, dst Account) error {
	data, ok := s.snapshots.Retrieve(base58.Encode(address))
	if !ok {
		return ErrNotFound
	}
	return s.decode(address, data, dst)
}

// Invalidate drops the snapshot for address.
func (s *Store) Invalidate(address ed25519.PublicKey) {
	s.snapshots.Delete(base58.Encode(address))
}

func (s *Store) decode(address ed25519.PublicKey, data []byte, dst Account) error {
	if err := dst.Unmarshal(data); err != nil {
		s.log.WithError(err).WithField("account", base58.Encode(address)).Debug("failed to decode account")
		return &MalformedError{
			Address: append(ed25519.PublicKey{}, address...),
			Err:     err,
		}
	}

	if a, ok := dst.(Addressable); ok {
		a.SetAddress(append(ed25519.PublicKey{}, address...))
	}

	s.snapshots.Insert(base58.Encode(address), append([]byte{}, data...), len(data))
	return nil
}

// Submit forwards signed transaction bytes to the ledger.
//
// Bytes with any empty signature slot are refused with ErrNotSigned before
// anything is sent. A refusal by the node is returned as a *RejectedError
// carrying the node's error verbatim. Any other failure is a
// *TransportError, in which case the transaction may or may not have been
// sent.
func (s *Store) Submit(ctx context.Context, signed []byte) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Submit")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	var tx solana.Transaction
	if err := tx.Unmarshal(signed); err != nil {
		return sig, errors.Wrap(err, "invalid transaction bytes")
	}
	if !tx.Signed() {
		return sig, ErrNotSigned
	}

	sig = tx.Signature()
	log := s.log.WithField("signature", sig.String())
	tracer.AddAttribute("signature", sig.String())

	submitted, err := s.client.SubmitTransaction(ctx, signed, s.commitment)
	if err != nil {
		return sig, s.classifySubmitError(log, err)
	}

	if submitted != sig {
		log.WithField("returned", submitted.String()).Warn("node returned unexpected signature")
	}

	log.Debug("transaction submitted")
	return sig, nil
}

func (s *Store) classifySubmitError(log *logrus.Entry, err error) error {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) || solana.IsTransientRPCError(rpcErr) {
		log.WithError(err).Warn("transaction submission failed in transport")
		return &TransportError{Op: "send transaction", Err: err}
	}

	rejected := &RejectedError{
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
	}

	txErr, parseErr := solana.ParseRPCError(rpcErr)
	if parseErr != nil {
		log.WithError(parseErr).Warn("failed to parse transaction error")
	}
	rejected.TransactionError = txErr

	log.WithError(rejected).Info("transaction rejected")
	return rejected
}
