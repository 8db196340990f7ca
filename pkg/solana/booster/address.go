package booster

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/code-payments/code-boost/pkg/solana"
)

var (
	StoreConfigPrefix = []byte("store_config")
	BoosterPrefix     = []byte("booster")
)

func GetStoreConfigAddress(program ed25519.PublicKey) (solana.DerivedAddress, error) {
	return solana.DeriveProgramAddress(
		program,
		StoreConfigPrefix,
	)
}

type GetBoosterAddressArgs struct {
	Buyer ed25519.PublicKey

	// TotalSold is the store's total_boosters_sold counter at the time of
	// purchase. The program creates the booster at the address for the
	// counter value it observes, so a stale value derives the wrong address.
	TotalSold uint64
}

func GetBoosterAddress(program ed25519.PublicKey, args *GetBoosterAddressArgs) (solana.DerivedAddress, error) {
	counter := make([]byte, 8)
	binary.LittleEndian.PutUint64(counter, args.TotalSold)

	return solana.DeriveProgramAddress(
		program,
		BoosterPrefix,
		args.Buyer,
		counter,
	)
}
