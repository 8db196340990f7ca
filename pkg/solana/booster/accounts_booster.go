package booster

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/binary"
)

const (
	BoosterAccountReservedSize = 31

	BoosterAccountSize = (1 + // discriminator
		32 + // owner
		1 + // booster_type
		2 + // multiplier_bps
		8 + // purchased_at
		8 + // expires_at
		1 + // is_active
		8 + // price_paid
		1 + // bump
		BoosterAccountReservedSize) // reserved

	boosterAccountOwnerOffset = 1

	bpsPerUnit = 10_000
)

var BoosterAccountDiscriminator = AccountTypeBooster.discriminator()

// BoosterAccount is a purchased booster. Timestamps are unix seconds.
type BoosterAccount struct {
	Address ed25519.PublicKey

	Owner         ed25519.PublicKey
	BoosterType   BoosterType
	MultiplierBps uint16
	PurchasedAt   int64
	ExpiresAt     int64
	IsActive      bool
	PricePaid     uint64
	Bump          uint8
	Reserved      [BoosterAccountReservedSize]byte
}

func (obj *BoosterAccount) fields() []binary.Field {
	return []binary.Field{
		binary.Key(&obj.Owner),
		binary.Uint8((*uint8)(&obj.BoosterType)),
		binary.Uint16(&obj.MultiplierBps),
		binary.Int64(&obj.PurchasedAt),
		binary.Int64(&obj.ExpiresAt),
		binary.Bool(&obj.IsActive),
		binary.Uint64(&obj.PricePaid),
		binary.Uint8(&obj.Bump),
		binary.Fixed(obj.Reserved[:]),
	}
}

func (obj *BoosterAccount) Marshal() []byte {
	return binary.Encode(BoosterAccountDiscriminator, obj.fields()...)
}

func (obj *BoosterAccount) Unmarshal(data []byte) error {
	return binary.Decode(data, BoosterAccountDiscriminator, obj.fields()...)
}

func (obj *BoosterAccount) SetAddress(address ed25519.PublicKey) {
	obj.Address = address
}

// IsCurrent reports whether the booster is active and unexpired at now.
func (obj *BoosterAccount) IsCurrent(now time.Time) bool {
	return obj.IsActive && now.Unix() < obj.ExpiresAt
}

// Remaining is the time left before expiry, or zero if the booster is no
// longer current.
func (obj *BoosterAccount) Remaining(now time.Time) time.Duration {
	if !obj.IsCurrent(now) {
		return 0
	}
	return time.Unix(obj.ExpiresAt, 0).Sub(now)
}

// Multiplier is the reward multiplier, e.g. 2.0 for 20000 bps.
func (obj *BoosterAccount) Multiplier() float64 {
	return float64(obj.MultiplierBps) / bpsPerUnit
}

// MultiplierDecimal is Multiplier without floating point rounding.
func (obj *BoosterAccount) MultiplierDecimal() decimal.Decimal {
	return decimal.New(int64(obj.MultiplierBps), 0).Div(decimal.New(bpsPerUnit, 0))
}

func (obj *BoosterAccount) String() string {
	return fmt.Sprintf(
		"Booster{address=%s,owner=%s,booster_type=%s,multiplier=%sx,purchased_at=%s,expires_at=%s,is_active=%v,price_paid=%d,bump=%d}",
		base58.Encode(obj.Address),
		base58.Encode(obj.Owner),
		obj.BoosterType,
		obj.MultiplierDecimal().String(),
		time.Unix(obj.PurchasedAt, 0).UTC().String(),
		time.Unix(obj.ExpiresAt, 0).UTC().String(),
		obj.IsActive,
		obj.PricePaid,
		obj.Bump,
	)
}

// BoosterAccountFilters selects booster records, optionally only those owned
// by owner.
func BoosterAccountFilters(owner ed25519.PublicKey) []solana.MemcmpFilter {
	filters := []solana.MemcmpFilter{
		{Offset: 0, Bytes: BoosterAccountDiscriminator},
	}
	if owner != nil {
		filters = append(filters, solana.MemcmpFilter{
			Offset: boosterAccountOwnerOffset,
			Bytes:  owner,
		})
	}
	return filters
}
