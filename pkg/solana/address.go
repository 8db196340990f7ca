package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/jdgcs/ed25519/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
)

var (
	ErrTooManySeeds        = errors.New("too many seeds")
	ErrSeedTooLong         = errors.New("max seed length exceeded")
	ErrDerivationExhausted = errors.New("no viable bump seed")

	ErrInvalidPublicKey = errors.New("invalid public key")
)

var (
	programHashCtor = sha256.New

	programDerivedAddressMarker = []byte("ProgramDerivedAddress")
)

// DerivedAddress is a program derived address along with the bump seed that
// moved it off the ed25519 curve.
type DerivedAddress struct {
	Address ed25519.PublicKey
	Bump    uint8
}

func (d DerivedAddress) String() string {
	return fmt.Sprintf("%s (bump=%d)", base58.Encode(d.Address), d.Bump)
}

// CreateProgramAddress mirrors the implementation of the Solana SDK's CreateProgramAddress.
//
// ProgramAddresses are public keys that _do not_ lie on the ed25519 curve to ensure that
// there is no associated private key. In the event that the program and seed parameters
// result in a valid public key, ErrInvalidPublicKey is returned.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L158
func CreateProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	if err := validateSeeds(seeds); err != nil {
		return nil, err
	}
	return createProgramAddress(program, seeds)
}

func createProgramAddress(program ed25519.PublicKey, seeds [][]byte) (ed25519.PublicKey, error) {
	h := programHashCtor()
	for _, s := range seeds {
		if _, err := h.Write(s); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	for _, v := range [][]byte{program, programDerivedAddressMarker} {
		if _, err := h.Write(v); err != nil {
			return nil, errors.Wrap(err, "failed to hash seed")
		}
	}

	var pub [32]byte
	copy(pub[:], h.Sum(nil))

	// Following the Solana SDK, we want to _reject_ the generated public key
	// if it's a valid compressed EdwardsPoint.
	//
	// The edwards25519.ExtendedGroupElement (the EdwardsPoint) is internal to
	// the golang.org/x/crypto library, so we rely on an open source alternative.
	//
	// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L182-L187
	var A edwards25519.ExtendedGroupElement
	if A.FromBytes(&pub) {
		return nil, ErrInvalidPublicKey
	}

	return pub[:], nil
}

// DeriveProgramAddress searches bump seeds from 255 down to 0, returning the
// first one that produces an off-curve address for the program and seeds.
//
// The result is a pure function of the inputs, so callers can re-derive an
// address at any time instead of storing it.
func DeriveProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (DerivedAddress, error) {
	// The bump seed itself occupies one of the seed slots.
	if len(seeds) >= maxSeeds {
		return DerivedAddress{}, ErrTooManySeeds
	}
	if err := validateSeeds(seeds); err != nil {
		return DerivedAddress{}, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := math.MaxUint8; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		pub, err := createProgramAddress(program, withBump)
		if err == nil {
			return DerivedAddress{Address: pub, Bump: uint8(bump)}, nil
		}
		if err != ErrInvalidPublicKey {
			return DerivedAddress{}, err
		}
	}

	return DerivedAddress{}, ErrDerivationExhausted
}

// FindProgramAddressAndBump mirrors the Solana SDK's FindProgramAddress. It
// returns the address and bump seed.
//
// Reference: https://github.com/solana-labs/solana/blob/5548e599fe4920b71766e0ad1d121755ce9c63d5/sdk/program/src/pubkey.rs#L234
func FindProgramAddressAndBump(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, uint8, error) {
	derived, err := DeriveProgramAddress(program, seeds...)
	if err != nil {
		return nil, 0, err
	}
	return derived.Address, derived.Bump, nil
}

// FindProgramAddress is FindProgramAddressAndBump without the bump.
func FindProgramAddress(program ed25519.PublicKey, seeds ...[]byte) (ed25519.PublicKey, error) {
	pub, _, err := FindProgramAddressAndBump(program, seeds...)
	return pub, err
}

func validateSeeds(seeds [][]byte) error {
	if len(seeds) > maxSeeds {
		return ErrTooManySeeds
	}
	for _, s := range seeds {
		if len(s) > maxSeedLength {
			return ErrSeedTooLong
		}
	}
	return nil
}
