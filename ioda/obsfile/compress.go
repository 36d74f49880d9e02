package obsfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/batchatco/go-native-ioda/ioda/api"
)

// One encoder pool per zstd speed level.
var zstdEncoderPools [zstd.SpeedBestCompression + 1]sync.Pool

func zstdLevel(level int) zstd.EncoderLevel {
	if level <= 0 {
		return zstd.SpeedDefault
	}
	return min(zstd.EncoderLevel(level), zstd.SpeedBestCompression)
}

func getZstdEncoder(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	if v := zstdEncoderPools[level].Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
}

// newZstdDecoder returns a decoder that refuses to produce more than rawLen
// bytes. Small frames still get the window the encoder may give them.
func newZstdDecoder(rawLen int) (*zstd.Decoder, error) {
	limit := uint64(max(rawLen, 2*zstd.MinWindowSize))
	return zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(limit),
		zstd.WithDecodeAllCapLimit(true))
}

func gzipLevel(level int) int {
	if level <= 0 {
		return gzip.DefaultCompression
	}
	return min(level, gzip.BestCompression)
}

// compress runs raw through codec c. When the codec does not make the block
// smaller it is stored as is, and the returned codec says so.
func compress(c api.Compression, level int, raw []byte) (api.Compression, []byte, error) {
	if len(raw) == 0 {
		return api.CompressionNone, raw, nil
	}
	var out []byte
	switch c {
	case api.CompressionNone:
		return c, raw, nil
	case api.CompressionGzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzipLevel(level))
		if err != nil {
			return c, nil, err
		}
		if _, err := zw.Write(raw); err != nil {
			return c, nil, err
		}
		if err := zw.Close(); err != nil {
			return c, nil, err
		}
		out = buf.Bytes()
	case api.CompressionZstd:
		lvl := zstdLevel(level)
		enc, err := getZstdEncoder(lvl)
		if err != nil {
			return c, nil, err
		}
		out = enc.EncodeAll(raw, nil)
		zstdEncoderPools[lvl].Put(enc)
	case api.CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return c, nil, err
		}
		if n == 0 {
			// Incompressible.
			return api.CompressionNone, raw, nil
		}
		out = dst[:n]
	default:
		return c, nil, fmt.Errorf("%w: unknown compression %v", api.ErrInvalidParams, c)
	}
	if len(out) >= len(raw) {
		return api.CompressionNone, raw, nil
	}
	return c, out, nil
}

// decompress reverses compress. rawLen is the length recorded in the block
// header and must be matched exactly.
func decompress(c api.Compression, payload []byte, rawLen int) ([]byte, error) {
	out, err := inflate(c, payload, rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v block: %w", api.ErrCorrupted, c, err)
	}
	if len(out) != rawLen {
		return nil, fmt.Errorf("%w: block decompressed to %d bytes, want %d",
			api.ErrCorrupted, len(out), rawLen)
	}
	return out, nil
}

func inflate(c api.Compression, payload []byte, rawLen int) ([]byte, error) {
	switch c {
	case api.CompressionNone:
		return payload, nil
	case api.CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out := make([]byte, rawLen)
		if _, err := io.ReadFull(zr, out); err != nil {
			return nil, err
		}
		if n, _ := io.CopyN(io.Discard, zr, 1); n > 0 {
			return nil, errors.New("data past the recorded length")
		}
		return out, nil
	case api.CompressionZstd:
		dec, err := newZstdDecoder(rawLen)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(payload, make([]byte, 0, rawLen))
	case api.CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		return out[:n], nil
	}
	return nil, fmt.Errorf("unknown compression %d", c)
}

// shuffle groups byte j of every element together, which makes numeric data
// compress better.
func shuffle(in []byte, width int) []byte {
	n := len(in) / width
	if width <= 1 || n == 0 {
		return in
	}
	out := make([]byte, len(in))
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			out[j*n+i] = in[i*width+j]
		}
	}
	return out
}

func unshuffle(in []byte, width int) []byte {
	n := len(in) / width
	if width <= 1 || n == 0 {
		return in
	}
	out := make([]byte, len(in))
	for i := 0; i < n; i++ {
		for j := 0; j < width; j++ {
			out[i*width+j] = in[j*n+i]
		}
	}
	return out
}
