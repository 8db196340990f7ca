// Package binary encodes and decodes the fixed-layout, little-endian records
// shared with on-chain programs.
//
// A record is described declaratively as an ordered list of Fields bound to the
// values being read or written:
//
//	func (obj *Account) fields() []binary.Field {
//		return []binary.Field{
//			binary.Key(&obj.Owner),
//			binary.Uint64(&obj.Amount),
//		}
//	}
//
// The same layout is used for both directions, so every record type shares a
// single encode/decode path.
package binary

import (
	"bytes"

	"github.com/pkg/errors"
)

var (
	// ErrTruncated indicates the buffer is shorter than the layout requires.
	ErrTruncated = errors.New("binary: buffer truncated")

	// ErrDiscriminatorMismatch indicates the leading tag bytes don't match the
	// record type being decoded.
	ErrDiscriminatorMismatch = errors.New("binary: discriminator mismatch")
)

// Size returns the number of bytes the fields occupy when encoded.
func Size(fields ...Field) int {
	var size int
	for _, f := range fields {
		size += f.size()
	}
	return size
}

// Encode writes the discriminator followed by each field in order, with no
// padding or delimiters between them.
func Encode(discriminator []byte, fields ...Field) []byte {
	dst := make([]byte, len(discriminator)+Size(fields...))

	offset := copy(dst, discriminator)
	for _, f := range fields {
		offset += f.put(dst[offset:])
	}

	return dst
}

// Decode reads fields in order from data, after verifying that data begins with
// the expected discriminator. Bytes beyond the end of the layout are ignored.
func Decode(data, discriminator []byte, fields ...Field) error {
	if len(data) < len(discriminator) {
		return errors.Wrapf(ErrTruncated, "need %d discriminator bytes, have %d", len(discriminator), len(data))
	}
	if !bytes.Equal(data[:len(discriminator)], discriminator) {
		return errors.Wrapf(ErrDiscriminatorMismatch, "expected %x, got %x", discriminator, data[:len(discriminator)])
	}

	offset := len(discriminator)
	for i, f := range fields {
		n, err := f.get(data[offset:])
		if err != nil {
			return errors.Wrapf(err, "field %d at offset %d", i, offset)
		}
		offset += n
	}

	return nil
}
