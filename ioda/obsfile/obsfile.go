// Package obsfile is the native container format: a little-endian header
// describing dimensions, groups and variables, with each variable's data
// stored as checksummed blocks of whole rows, optionally shuffled and
// compressed with gzip, zstd or lz4.
//
// Layout:
//
//	"IODA" version:u8
//	ndims:u32  { name length:i64 unlimited:u8 }
//	attributes
//	ngroups:u32 { name attributes }
//	nvars:u32  { name type:u8 ndims:u32 {dim} params attributes data }
//
// where a variable's data is written:u8 [rows:i64 nblocks:u32
// { codec:u8 rawlen:u32 storedlen:u32 checksum:u32 payload }].
package obsfile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/batchatco/go-thrower"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
	"github.com/batchatco/go-native-ioda/ioda/util"
)

const (
	magic   = "IODA"
	version = 1

	// Bounds on header counts; anything larger is treated as corruption.
	maxDimensions = 1024
	maxCount      = 1 << 20
)

var (
	ErrBadMagic = fmt.Errorf("%w: bad magic number", api.ErrUnknownFormat)
	ErrVersion  = fmt.Errorf("%w: unsupported version", api.ErrUnknownFormat)
)

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (fatal messages only) and the highest
// level is 3 (errors, warnings and informational messages).
func SetLogLevel(level int) int {
	return int(logger.SetLogLevel(internal.LogLevel(level)))
}

// Engine reads and writes the native format.
type Engine struct{}

func (Engine) Name() string       { return "ioda" }
func (Engine) Magic() []byte      { return []byte(magic) }
func (Engine) Hierarchical() bool { return true }

// Encode writes ds. Nothing is written when ds is inconsistent.
func (Engine) Encode(w io.Writer, ds *api.Dataset) (err error) {
	defer thrower.RecoverError(&err)
	thrower.ThrowIfError(ds.Validate())

	bw := bufio.NewWriter(w)
	util.MustWriteRaw(bw, []byte(magic))
	util.MustWrite(bw, order, uint8(version))

	util.MustWrite(bw, order, uint32(len(ds.Dims)))
	for _, d := range ds.Dims {
		util.MustWriteString(bw, order, d.Name)
		util.MustWrite(bw, order, int64(d.Length))
		util.MustWrite(bw, order, boolByte(d.Unlimited))
	}
	writeAttrs(bw, ds.Attrs)

	util.MustWrite(bw, order, uint32(len(ds.Groups)))
	for _, g := range ds.Groups {
		util.MustWriteString(bw, order, g.Name)
		writeAttrs(bw, g.Attrs)
	}

	util.MustWrite(bw, order, uint32(len(ds.Vars)))
	for _, v := range ds.Vars {
		writeVar(bw, v)
	}
	thrower.ThrowIfError(bw.Flush())
	logger.Infof("encoded %d dimensions, %d groups, %d variables",
		len(ds.Dims), len(ds.Groups), len(ds.Vars))
	return nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func writeArray(w io.Writer, a *types.Array) {
	util.MustWrite(w, order, uint8(a.Type))
	util.MustWrite(w, order, uint32(len(a.Shape)))
	for _, d := range a.Shape {
		util.MustWrite(w, order, int64(d))
	}
	raw, err := encodeElements(a)
	thrower.ThrowIfError(err)
	util.MustWriteBytes(w, order, raw)
}

func writeAttrs(w io.Writer, attrs *api.AttributeMap) {
	if attrs == nil {
		util.MustWrite(w, order, uint32(0))
		return
	}
	util.MustWrite(w, order, uint32(attrs.Len()))
	for name, val := range attrs.All() {
		util.MustWriteString(w, order, name)
		writeArray(w, val)
	}
}

func writeVar(w io.Writer, v *api.Var) {
	util.MustWriteString(w, order, v.Name)
	util.MustWrite(w, order, uint8(v.Type))
	util.MustWrite(w, order, uint32(len(v.Dims)))
	for _, d := range v.Dims {
		util.MustWriteString(w, order, d)
	}

	p := v.Params
	util.MustWrite(w, order, uint8(p.Compression))
	util.MustWrite(w, order, uint8(p.Level))
	util.MustWrite(w, order, boolByte(p.Shuffle))
	util.MustWrite(w, order, uint32(len(p.Chunks)))
	for _, c := range p.Chunks {
		util.MustWrite(w, order, int64(c))
	}
	util.MustWrite(w, order, boolByte(p.Fill != nil))
	if p.Fill != nil {
		fill, err := types.FillArray(v.Type, nil, p.Fill)
		thrower.ThrowIfError(err)
		writeArray(w, fill)
	}
	writeAttrs(w, v.Attrs)

	util.MustWrite(w, order, boolByte(v.Data != nil))
	if v.Data == nil {
		return
	}
	rows, blocks, err := encodeBlocks(p, v.Data)
	thrower.ThrowIfError(err)
	util.MustWrite(w, order, int64(rows))
	util.MustWrite(w, order, uint32(len(blocks)))
	for _, b := range blocks {
		util.MustWrite(w, order, uint8(b.codec))
		util.MustWrite(w, order, b.rawLen)
		util.MustWrite(w, order, uint32(len(b.payload)))
		util.MustWrite(w, order, b.sum)
		util.MustWriteRaw(w, b.payload)
	}
}

// Decode reads a whole container. Every block is verified against its
// checksum; any inconsistency is reported as api.ErrCorrupted.
func (Engine) Decode(r io.ReadSeeker) (ds *api.Dataset, err error) {
	defer thrower.RecoverError(&err)
	br := bufio.NewReader(r)

	head := make([]byte, len(magic))
	_, err = io.ReadFull(br, head)
	if err != nil || string(head) != magic {
		return nil, ErrBadMagic
	}
	v := util.MustRead8(br)
	assertError(v == version, ErrVersion, fmt.Sprintf("version %d", v))

	ds = api.NewDataset()
	n := readCount(br, maxDimensions)
	for range n {
		d := &api.Dim{Name: util.MustReadString(br, order)}
		var length int64
		util.MustRead(br, order, &length)
		assertError(length >= 0 && length <= util.MaxLength, api.ErrCorrupted,
			fmt.Sprintf("dimension %q has length %d", d.Name, length))
		d.Length = int(length)
		d.Unlimited = util.MustRead8(br) != 0
		ds.Dims = append(ds.Dims, d)
	}
	ds.Attrs = readAttrs(br)

	n = readCount(br, maxCount)
	for range n {
		g := &api.Group{Name: util.MustReadString(br, order)}
		g.Attrs = readAttrs(br)
		ds.Groups = append(ds.Groups, g)
	}

	n = readCount(br, maxCount)
	for range n {
		ds.Vars = append(ds.Vars, readVar(br, ds))
	}
	_, err = br.ReadByte()
	warnAssert(err == io.EOF, "trailing bytes after the last variable")

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrCorrupted, err)
	}
	logger.Infof("decoded %d dimensions, %d groups, %d variables",
		len(ds.Dims), len(ds.Groups), len(ds.Vars))
	return ds, nil
}

func readCount(r io.Reader, limit int) int {
	var n uint32
	util.MustRead(r, order, &n)
	assertError(int64(n) <= int64(limit), api.ErrCorrupted, fmt.Sprintf("count %d over %d", n, limit))
	return int(n)
}

func readType(r io.Reader) types.Type {
	t := types.Type(util.MustRead8(r))
	assertError(t.Valid(), api.ErrCorrupted, fmt.Sprintf("bad type tag %d", t))
	return t
}

func readArray(r io.Reader) *types.Array {
	t := readType(r)
	rank := readCount(r, maxDimensions)
	var shape []int
	if rank > 0 {
		shape = make([]int, rank)
	}
	for i := range shape {
		var d int64
		util.MustRead(r, order, &d)
		assertError(d >= 0 && d <= util.MaxLength, api.ErrCorrupted, "bad attribute shape")
		shape[i] = int(d)
	}
	raw := util.MustReadBytes(r, order)
	// Every element takes at least one byte, which bounds the allocation.
	assertError(types.Product(shape) <= len(raw)+1, api.ErrCorrupted, "attribute shape larger than its data")
	a, err := types.MakeArray(t, shape)
	thrower.ThrowIfError(err)
	thrower.ThrowIfError(decodeElements(a, raw))
	return a
}

func readAttrs(r io.Reader) *api.AttributeMap {
	attrs := api.NewAttributeMap()
	n := readCount(r, maxCount)
	for range n {
		name := util.MustReadString(r, order)
		assertError(!attrs.Has(name), api.ErrCorrupted, fmt.Sprintf("duplicate attribute %q", name))
		attrs.Add(name, readArray(r))
	}
	return attrs
}

func readVar(r io.Reader, ds *api.Dataset) *api.Var {
	v := &api.Var{Name: util.MustReadString(r, order)}
	v.Type = readType(r)
	n := readCount(r, maxDimensions)
	for range n {
		v.Dims = append(v.Dims, util.MustReadString(r, order))
	}

	p := &v.Params
	p.Compression = api.Compression(util.MustRead8(r))
	p.Level = int(util.MustRead8(r))
	p.Shuffle = util.MustRead8(r) != 0
	n = readCount(r, maxDimensions)
	for range n {
		var c int64
		util.MustRead(r, order, &c)
		assertError(c > 0 && c <= util.MaxLength, api.ErrCorrupted, "bad chunk length")
		p.Chunks = append(p.Chunks, int(c))
	}
	if util.MustRead8(r) != 0 {
		fill := readArray(r)
		assertError(fill.Type == v.Type && fill.Len() == 1, api.ErrCorrupted,
			fmt.Sprintf("bad fill value for %q", v.Name))
		p.Fill = fill.Index(0)
	}
	v.Attrs = readAttrs(r)

	if util.MustRead8(r) == 0 {
		return v
	}
	var rows int64
	util.MustRead(r, order, &rows)
	assertError(rows > 0 && rows <= util.MaxLength, api.ErrCorrupted, "bad rows per block")
	nblocks := readCount(r, maxCount)
	blocks := make([]block, nblocks)
	for i := range blocks {
		b := &blocks[i]
		b.codec = api.Compression(util.MustRead8(r))
		util.MustRead(r, order, &b.rawLen)
		var stored uint32
		util.MustRead(r, order, &stored)
		util.MustRead(r, order, &b.sum)
		b.payload = util.MustReadRaw(r, int(stored))
	}
	shape, err := ds.Shape(v)
	if err != nil {
		failError(api.ErrCorrupted, err.Error())
	}
	v.Data, err = decodeBlocks(v.Type, *p, shape, int(rows), blocks)
	thrower.ThrowIfError(err)
	return v
}
