package boost

import (
	"context"
	"crypto/ed25519"
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/booster"
)

var (
	ErrSigningCancelled  = errors.New("signing cancelled")
	ErrSignerTampered    = errors.New("signer modified the transaction message")
	ErrStoreInactive     = errors.New("store is not active")
	ErrInvalidDuration   = errors.New("booster duration must be at least one hour")
	ErrStaleStoreCounter = errors.New("store counter changed before the purchase landed")

	ErrInvalidComputeUnitLimit = errors.New("compute unit limit does not fit in 32 bits")
)

// staleCounterError is a purchase failure caused by the store counter moving
// after the purchase was prepared.
type staleCounterError struct {
	cause error
}

func (e *staleCounterError) Error() string {
	return ErrStaleStoreCounter.Error() + ": " + e.cause.Error()
}

func (e *staleCounterError) Is(target error) bool {
	return target == ErrStaleStoreCounter
}

func (e *staleCounterError) Unwrap() error {
	return e.cause
}

// Signer signs transactions on behalf of the buyer. The core never holds
// keys; it hands the signer unsigned transaction bytes and expects the same
// transaction back with the buyer's signature filled in.
type Signer interface {
	// SignTransaction returns ErrSigningCancelled if the user declined.
	SignTransaction(ctx context.Context, unsigned []byte) ([]byte, error)
}

type SignerFunc func(ctx context.Context, unsigned []byte) ([]byte, error)

func (f SignerFunc) SignTransaction(ctx context.Context, unsigned []byte) ([]byte, error) {
	return f(ctx, unsigned)
}

// Outcome is what a buyer should be told about a purchase.
type Outcome uint8

const (
	// OutcomeUnknown means the transaction may or may not have landed. Funds
	// may have been spent; check back later.
	OutcomeUnknown Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// PreparedPurchase is an unsigned purchase transaction, ready for a signer.
type PreparedPurchase struct {
	FlowID      string
	Transaction []byte
	Buyer       ed25519.PublicKey
	Price       uint64

	// Set for booster purchases.
	Booster     *solana.DerivedAddress
	BoosterType booster.BoosterType
	Hours       uint32

	// Set for points pack purchases.
	PackSize booster.PackSize
	Points   uint64

	// TotalSold is the store counter the purchase was built against.
	TotalSold uint64
}

// PurchaseResult is the final state of a submitted purchase.
type PurchaseResult struct {
	FlowID    string
	Signature solana.Signature
	Outcome   Outcome
	Attempts  int

	// Err explains a failed or unknown outcome: the node's rejection, the
	// on-chain error, or why confirmation couldn't be determined.
	Err error

	// Booster is the purchased booster, when the purchase succeeded and it
	// could be read back.
	Booster *booster.BoosterAccount
	Points  uint64
}

// Quote is the price of a booster.
type Quote struct {
	BoosterType   booster.BoosterType
	Hours         uint32
	Price         uint64
	MultiplierBps uint16
}

func (q *Quote) Multiplier() decimal.Decimal {
	return decimal.New(int64(q.MultiplierBps), -4)
}

// PriceSOL is the price in SOL rather than lamports.
func (q *Quote) PriceSOL() decimal.Decimal {
	return LamportsToSOL(q.Price)
}

const lamportsPerSOL = 1_000_000_000

func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(decimal.New(lamportsPerSOL, 0))
}
