// Package metadata reads token metadata records owned by the token metadata
// program.
package metadata

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/binary"
)

// ProgramKey is the token metadata program.
//
// Current key: metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s
var ProgramKey = mustBase58Decode("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

var MetadataPrefix = []byte("metadata")

// Reserved lengths for the padded string fields.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
)

const keyMetadataV1 uint8 = 4

// GetMetadataAddress derives the metadata account for a mint.
func GetMetadataAddress(mint ed25519.PublicKey) (solana.DerivedAddress, error) {
	return solana.DeriveProgramAddress(
		ProgramKey,
		MetadataPrefix,
		ProgramKey,
		mint,
	)
}

// Metadata is the leading, fixed portion of a metadata account. Creators,
// collection details and later fields are not decoded.
type Metadata struct {
	UpdateAuthority      ed25519.PublicKey
	Mint                 ed25519.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

func (m *Metadata) fields() []binary.Field {
	return []binary.Field{
		binary.Key(&m.UpdateAuthority),
		binary.Key(&m.Mint),
		binary.String(&m.Name),
		binary.String(&m.Symbol),
		binary.String(&m.URI),
		binary.Uint16(&m.SellerFeeBasisPoints),
	}
}

// Marshal encodes the record with the string fields padded with NUL bytes to
// their reserved lengths, as the program writes them.
func (m *Metadata) Marshal() []byte {
	padded := *m
	padded.Name = pad(m.Name, MaxNameLength)
	padded.Symbol = pad(m.Symbol, MaxSymbolLength)
	padded.URI = pad(m.URI, MaxURILength)
	return binary.Encode([]byte{keyMetadataV1}, padded.fields()...)
}

func (m *Metadata) Unmarshal(data []byte) error {
	if err := binary.Decode(data, []byte{keyMetadataV1}, m.fields()...); err != nil {
		return err
	}

	m.Name = trimPadding(m.Name)
	m.Symbol = trimPadding(m.Symbol)
	m.URI = trimPadding(m.URI)
	return nil
}

func (m *Metadata) String() string {
	return fmt.Sprintf(
		"Metadata{update_authority=%s,mint=%s,name=%q,symbol=%q,uri=%q,seller_fee_basis_points=%d}",
		base58.Encode(m.UpdateAuthority),
		base58.Encode(m.Mint),
		m.Name,
		m.Symbol,
		m.URI,
		m.SellerFeeBasisPoints,
	)
}

func pad(value string, length int) string {
	if len(value) >= length {
		return value
	}
	return value + strings.Repeat("\x00", length-len(value))
}

func trimPadding(value string) string {
	return strings.TrimRight(value, "\x00")
}

func mustBase58Decode(value string) ed25519.PublicKey {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
