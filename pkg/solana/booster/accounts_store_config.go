package booster

import (
	"crypto/ed25519"
	"fmt"
	"math/bits"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/solana/binary"
)

const (
	StoreConfigAccountSize = (1 + // discriminator
		32 + // authority
		32 + // treasury
		8 + // xp_price_per_hour
		8 + // points_price_per_hour
		8 + // combo_price_per_hour
		2 + // xp_multiplier_bps
		2 + // points_multiplier_bps
		2 + // combo_multiplier_bps
		8 + // small_pack_price
		8 + // small_pack_points
		8 + // large_pack_price
		8 + // large_pack_points
		1 + // is_active
		8 + // total_boosters_sold
		8 + // total_collected
		1) // bump
)

var StoreConfigAccountDiscriminator = AccountTypeStoreConfig.discriminator()

// StoreConfigAccount is the store's singleton configuration and sales
// counters. Prices are in lamports.
type StoreConfigAccount struct {
	Address ed25519.PublicKey

	Authority ed25519.PublicKey
	Treasury  ed25519.PublicKey

	XpPricePerHour     uint64
	PointsPricePerHour uint64
	ComboPricePerHour  uint64

	XpMultiplierBps     uint16
	PointsMultiplierBps uint16
	ComboMultiplierBps  uint16

	SmallPackPrice  uint64
	SmallPackPoints uint64
	LargePackPrice  uint64
	LargePackPoints uint64

	IsActive          bool
	TotalBoostersSold uint64
	TotalCollected    uint64
	Bump              uint8
}

func (obj *StoreConfigAccount) fields() []binary.Field {
	return []binary.Field{
		binary.Key(&obj.Authority),
		binary.Key(&obj.Treasury),
		binary.Uint64(&obj.XpPricePerHour),
		binary.Uint64(&obj.PointsPricePerHour),
		binary.Uint64(&obj.ComboPricePerHour),
		binary.Uint16(&obj.XpMultiplierBps),
		binary.Uint16(&obj.PointsMultiplierBps),
		binary.Uint16(&obj.ComboMultiplierBps),
		binary.Uint64(&obj.SmallPackPrice),
		binary.Uint64(&obj.SmallPackPoints),
		binary.Uint64(&obj.LargePackPrice),
		binary.Uint64(&obj.LargePackPoints),
		binary.Bool(&obj.IsActive),
		binary.Uint64(&obj.TotalBoostersSold),
		binary.Uint64(&obj.TotalCollected),
		binary.Uint8(&obj.Bump),
	}
}

func (obj *StoreConfigAccount) Marshal() []byte {
	return binary.Encode(StoreConfigAccountDiscriminator, obj.fields()...)
}

func (obj *StoreConfigAccount) Unmarshal(data []byte) error {
	return binary.Decode(data, StoreConfigAccountDiscriminator, obj.fields()...)
}

func (obj *StoreConfigAccount) SetAddress(address ed25519.PublicKey) {
	obj.Address = address
}

// Validate checks the invariants the program maintains for an active store.
func (obj *StoreConfigAccount) Validate() error {
	if !obj.IsActive {
		return nil
	}

	for _, t := range AllBoosterTypes {
		if obj.MultiplierBps(t) == 0 {
			return errors.Wrapf(ErrInvalidAccountData, "zero multiplier for %s boosters", t)
		}
	}
	return nil
}

// PricePerHour returns the hourly price for a booster type, or zero for an
// unknown type.
func (obj *StoreConfigAccount) PricePerHour(t BoosterType) uint64 {
	switch t {
	case BoosterTypeXP:
		return obj.XpPricePerHour
	case BoosterTypePoints:
		return obj.PointsPricePerHour
	case BoosterTypeCombo:
		return obj.ComboPricePerHour
	}
	return 0
}

// MultiplierBps returns the multiplier, in basis points, granted by a booster
// type, or zero for an unknown type.
func (obj *StoreConfigAccount) MultiplierBps(t BoosterType) uint16 {
	switch t {
	case BoosterTypeXP:
		return obj.XpMultiplierBps
	case BoosterTypePoints:
		return obj.PointsMultiplierBps
	case BoosterTypeCombo:
		return obj.ComboMultiplierBps
	}
	return 0
}

// BoosterPrice returns the total price for a booster of the given type and
// duration.
func (obj *StoreConfigAccount) BoosterPrice(t BoosterType, hours uint32) (uint64, error) {
	if !t.IsValid() {
		return 0, ErrInvalidBoosterType
	}

	hi, price := bits.Mul64(obj.PricePerHour(t), uint64(hours))
	if hi != 0 {
		return 0, errors.New("booster price overflows")
	}
	return price, nil
}

// Pack returns the price and points granted for a points pack.
func (obj *StoreConfigAccount) Pack(size PackSize) (price, points uint64, err error) {
	switch size {
	case PackSizeSmall:
		return obj.SmallPackPrice, obj.SmallPackPoints, nil
	case PackSizeLarge:
		return obj.LargePackPrice, obj.LargePackPoints, nil
	}
	return 0, 0, ErrInvalidPackSize
}

func (obj *StoreConfigAccount) String() string {
	return fmt.Sprintf(
		"StoreConfig{authority=%s,treasury=%s,xp_price_per_hour=%d,points_price_per_hour=%d,combo_price_per_hour=%d,xp_multiplier_bps=%d,points_multiplier_bps=%d,combo_multiplier_bps=%d,small_pack_price=%d,small_pack_points=%d,large_pack_price=%d,large_pack_points=%d,is_active=%v,total_boosters_sold=%d,total_collected=%d,bump=%d}",
		base58.Encode(obj.Authority),
		base58.Encode(obj.Treasury),
		obj.XpPricePerHour,
		obj.PointsPricePerHour,
		obj.ComboPricePerHour,
		obj.XpMultiplierBps,
		obj.PointsMultiplierBps,
		obj.ComboMultiplierBps,
		obj.SmallPackPrice,
		obj.SmallPackPoints,
		obj.LargePackPrice,
		obj.LargePackPoints,
		obj.IsActive,
		obj.TotalBoostersSold,
		obj.TotalCollected,
		obj.Bump,
	)
}
