// Package util holds the byte-level helpers shared by the container codecs.
// The Must* functions throw with go-thrower instead of returning errors; every
// exported codec entry point recovers them with thrower.RecoverError.
package util

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/batchatco/go-thrower"
)

// ErrTooLarge is thrown when a length prefix exceeds what the reader allows.
var ErrTooLarge = errors.New("length prefix too large")

// MaxLength bounds every length-prefixed read so a corrupted prefix cannot
// make the decoder allocate unbounded memory.
const MaxLength = math.MaxInt32

// MustWrite wraps binary.Write and throws an error if it fails.
func MustWrite(w io.Writer, order binary.ByteOrder, data any) {
	err := binary.Write(w, order, data)
	thrower.ThrowIfError(err)
}

// MustWriteLE wraps binary.Write with LittleEndian and throws an error if it fails.
func MustWriteLE(w io.Writer, data any) {
	MustWrite(w, binary.LittleEndian, data)
}

// MustWriteBE wraps binary.Write with BigEndian and throws an error if it fails.
func MustWriteBE(w io.Writer, data any) {
	MustWrite(w, binary.BigEndian, data)
}

// MustWriteRaw wraps Write and throws an error if it fails.
func MustWriteRaw(w io.Writer, p []byte) {
	_, err := w.Write(p)
	thrower.ThrowIfError(err)
}

// MustWriteBytes writes a uint32 length prefix followed by p.
func MustWriteBytes(w io.Writer, order binary.ByteOrder, p []byte) {
	if len(p) > MaxLength {
		thrower.Throw(ErrTooLarge)
	}
	MustWrite(w, order, uint32(len(p)))
	MustWriteRaw(w, p)
}

// MustWriteString writes s with a uint32 length prefix.
func MustWriteString(w io.Writer, order binary.ByteOrder, s string) {
	MustWriteBytes(w, order, []byte(s))
}

// MustRead wraps binary.Read and throws an error if it fails.
func MustRead(r io.Reader, order binary.ByteOrder, data any) {
	err := binary.Read(r, order, data)
	thrower.ThrowIfError(err)
}

// MustReadLE wraps binary.Read with LittleEndian and throws an error if it fails.
func MustReadLE(r io.Reader, data any) {
	MustRead(r, binary.LittleEndian, data)
}

// MustReadBE wraps binary.Read with BigEndian and throws an error if it fails.
func MustReadBE(r io.Reader, data any) {
	MustRead(r, binary.BigEndian, data)
}

// MustRead8 reads a single byte and throws an error if it fails.
func MustRead8(r io.Reader) byte {
	var b byte
	MustReadLE(r, &b)
	return b
}

// MustReadRaw reads exactly n bytes.
func MustReadRaw(r io.Reader, n int) []byte {
	if n < 0 || n > MaxLength {
		thrower.Throw(ErrTooLarge)
	}
	p := make([]byte, n)
	_, err := io.ReadFull(r, p)
	thrower.ThrowIfError(err)
	return p
}

// MustReadBytes reads a uint32 length prefix and that many bytes.
func MustReadBytes(r io.Reader, order binary.ByteOrder) []byte {
	var n uint32
	MustRead(r, order, &n)
	if n > MaxLength {
		thrower.Throw(ErrTooLarge)
	}
	return MustReadRaw(r, int(n))
}

// MustReadString reads a string written by MustWriteString.
func MustReadString(r io.Reader, order binary.ByteOrder) string {
	return string(MustReadBytes(r, order))
}
