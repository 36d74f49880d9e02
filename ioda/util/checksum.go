package util

import (
	"encoding/binary"
)

// Block checksums use Bob Jenkins' lookup3 hash, the same function HDF5
// uses for its metadata checksums.

func rot(x uint32, k uint32) uint32 {
	return x<<k | x>>(32-k)
}

func mix(a, b, c *uint32) {
	*a -= *c
	*a ^= rot(*c, 4)
	*c += *b

	*b -= *a
	*b ^= rot(*a, 6)
	*a += *c

	*c -= *b
	*c ^= rot(*b, 8)
	*b += *a

	*a -= *c
	*a ^= rot(*c, 16)
	*c += *b

	*b -= *a
	*b ^= rot(*a, 19)
	*a += *c

	*c -= *b
	*c ^= rot(*b, 4)
	*b += *a
}

func final(a, b, c *uint32) {
	*c ^= *b
	*c -= rot(*b, 14)

	*a ^= *c
	*a -= rot(*c, 11)

	*b ^= *a
	*b -= rot(*a, 25)

	*c ^= *b
	*c -= rot(*b, 16)

	*a ^= *c
	*a -= rot(*c, 4)

	*b ^= *a
	*b -= rot(*a, 14)

	*c ^= *b
	*c -= rot(*b, 24)
}

// Checksum hashes data. The tail is zero padded to a whole word, but the
// true length seeds the hash, so trailing zero bytes still change the sum.
func Checksum(data []byte) uint32 {
	n := uint32(len(data))
	a := 0xdeadbeef + n
	b, c := a, a
	word := func(off int) uint32 {
		if off+4 <= len(data) {
			return binary.LittleEndian.Uint32(data[off:])
		}
		var w [4]byte
		if off < len(data) {
			copy(w[:], data[off:])
		}
		return binary.LittleEndian.Uint32(w[:])
	}
	off := 0
	for n > 12 {
		a += word(off)
		b += word(off + 4)
		c += word(off + 8)
		mix(&a, &b, &c)
		off += 12
		n -= 12
	}
	switch n {
	case 12, 11, 10, 9:
		a += word(off)
		b += word(off + 4)
		c += word(off + 8)
	case 8, 7, 6, 5:
		a += word(off)
		b += word(off + 4)
	case 4, 3, 2, 1:
		a += word(off)
	case 0:
		return c
	}
	final(&a, &b, &c)
	return c
}
