package binary

import (
	"crypto/ed25519"
	"encoding/binary"
)

// Field is a single value within a record layout.
type Field interface {
	size() int
	put(dst []byte) int
	get(src []byte) (int, error)
}

type fixedField struct {
	n      int
	putter func(dst []byte)
	getter func(src []byte)
}

func (f fixedField) size() int {
	return f.n
}

func (f fixedField) put(dst []byte) int {
	f.putter(dst[:f.n])
	return f.n
}

func (f fixedField) get(src []byte) (int, error) {
	if len(src) < f.n {
		return 0, ErrTruncated
	}
	f.getter(src[:f.n])
	return f.n, nil
}

func Uint8(v *uint8) Field {
	return fixedField{
		n:      1,
		putter: func(dst []byte) { dst[0] = *v },
		getter: func(src []byte) { *v = src[0] },
	}
}

func Uint16(v *uint16) Field {
	return fixedField{
		n:      2,
		putter: func(dst []byte) { binary.LittleEndian.PutUint16(dst, *v) },
		getter: func(src []byte) { *v = binary.LittleEndian.Uint16(src) },
	}
}

func Uint32(v *uint32) Field {
	return fixedField{
		n:      4,
		putter: func(dst []byte) { binary.LittleEndian.PutUint32(dst, *v) },
		getter: func(src []byte) { *v = binary.LittleEndian.Uint32(src) },
	}
}

func Uint64(v *uint64) Field {
	return fixedField{
		n:      8,
		putter: func(dst []byte) { binary.LittleEndian.PutUint64(dst, *v) },
		getter: func(src []byte) { *v = binary.LittleEndian.Uint64(src) },
	}
}

func Int8(v *int8) Field {
	return fixedField{
		n:      1,
		putter: func(dst []byte) { dst[0] = uint8(*v) },
		getter: func(src []byte) { *v = int8(src[0]) },
	}
}

func Int16(v *int16) Field {
	return fixedField{
		n:      2,
		putter: func(dst []byte) { binary.LittleEndian.PutUint16(dst, uint16(*v)) },
		getter: func(src []byte) { *v = int16(binary.LittleEndian.Uint16(src)) },
	}
}

func Int32(v *int32) Field {
	return fixedField{
		n:      4,
		putter: func(dst []byte) { binary.LittleEndian.PutUint32(dst, uint32(*v)) },
		getter: func(src []byte) { *v = int32(binary.LittleEndian.Uint32(src)) },
	}
}

func Int64(v *int64) Field {
	return fixedField{
		n:      8,
		putter: func(dst []byte) { binary.LittleEndian.PutUint64(dst, uint64(*v)) },
		getter: func(src []byte) { *v = int64(binary.LittleEndian.Uint64(src)) },
	}
}

// Bool is a single byte, 0 or 1. Any non-zero byte decodes as true.
func Bool(v *bool) Field {
	return fixedField{
		n: 1,
		putter: func(dst []byte) {
			if *v {
				dst[0] = 1
			} else {
				dst[0] = 0
			}
		},
		getter: func(src []byte) { *v = src[0] != 0 },
	}
}

// Key is a 32 byte public key. A nil or short key encodes as zero bytes, and
// decoding always allocates a new key.
func Key(v *ed25519.PublicKey) Field {
	return fixedField{
		n:      ed25519.PublicKeySize,
		putter: func(dst []byte) { copy(dst, *v) },
		getter: func(src []byte) {
			*v = make(ed25519.PublicKey, ed25519.PublicKeySize)
			copy(*v, src)
		},
	}
}

// Fixed is a fixed length byte array, such as a hash or a reserved region that
// must round trip.
func Fixed(v []byte) Field {
	return fixedField{
		n:      len(v),
		putter: func(dst []byte) { copy(dst, v) },
		getter: func(src []byte) { copy(v, src) },
	}
}

// Padding skips n bytes on decode and writes n zero bytes on encode.
func Padding(n int) Field {
	return fixedField{
		n:      n,
		putter: func(dst []byte) {},
		getter: func(src []byte) {},
	}
}

type stringField struct {
	v *string
}

// String is a UTF-8 string prefixed by its byte length as a little-endian u32.
func String(v *string) Field {
	return stringField{v: v}
}

func (f stringField) size() int {
	return 4 + len(*f.v)
}

func (f stringField) put(dst []byte) int {
	binary.LittleEndian.PutUint32(dst, uint32(len(*f.v)))
	copy(dst[4:], *f.v)
	return f.size()
}

func (f stringField) get(src []byte) (int, error) {
	if len(src) < 4 {
		return 0, ErrTruncated
	}

	length := binary.LittleEndian.Uint32(src)
	if uint64(len(src)-4) < uint64(length) {
		return 0, ErrTruncated
	}

	*f.v = string(src[4 : 4+int(length)])
	return 4 + int(length), nil
}
