// Package shortvec implements the compact-u16 length encoding used throughout
// the transaction wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

const maxEncodedLen = 3

var (
	ErrLengthOverflow = errors.Errorf("shortvec: length exceeds %d", math.MaxUint16)
	ErrNonCanonical   = errors.New("shortvec: non-canonical encoding")
)

// EncodeLen writes length as a compact-u16: 7 bits per byte, least significant
// group first, with the high bit set on every byte except the last.
func EncodeLen(w io.ByteWriter, length int) (int, error) {
	if length < 0 || length > math.MaxUint16 {
		return 0, ErrLengthOverflow
	}

	var written int
	for {
		b := byte(length & 0x7f)
		length >>= 7
		if length != 0 {
			b |= 0x80
		}

		if err := w.WriteByte(b); err != nil {
			return written, err
		}
		written++

		if length == 0 {
			return written, nil
		}
	}
}

// DecodeLen reads a compact-u16 length. Encodings longer than necessary, or
// that overflow a u16, are rejected.
func DecodeLen(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < maxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		if i > 0 && b == 0 {
			return 0, ErrNonCanonical
		}

		val |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if val > math.MaxUint16 {
				return 0, ErrLengthOverflow
			}
			return val, nil
		}
	}

	return 0, ErrLengthOverflow
}
