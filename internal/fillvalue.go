// Internal API, not to be exported
package internal

import (
	"io"
)

// FillReader endlessly repeats the encoded bytes of one fill value. Copying
// n elements' worth of it writes the data of a variable that was never
// written.
type FillReader struct {
	pattern []byte
	offset  int
}

func NewFillReader(pattern []byte) *FillReader {
	if len(pattern) == 0 {
		// A zero-width element (an empty string) still pads with zeros.
		pattern = []byte{0}
	}
	return &FillReader{pattern: pattern}
}

func (fr *FillReader) Read(p []byte) (int, error) {
	n := len(fr.pattern)
	z := p
	if fr.offset == 0 {
		for len(z) >= n {
			copy(z, fr.pattern)
			z = z[n:]
		}
	}
	off := fr.offset
	for i := range z {
		z[i] = fr.pattern[off%n]
		off++
	}
	fr.offset = off % n
	return len(p), nil
}

// WriteFill writes count repetitions of pattern to w.
func WriteFill(w io.Writer, pattern []byte, count int64) error {
	_, err := io.CopyN(w, NewFillReader(pattern), count*int64(max(len(pattern), 1)))
	return err
}
