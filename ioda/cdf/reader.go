package cdf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/batchatco/go-thrower"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
	"github.com/batchatco/go-native-ioda/ioda/util"
)

// Upper bound on the bytes of one variable.
const maxVarBytes = int64(util.MaxLength) * 8

type dimension struct {
	name      string
	dimLength uint64 // 64-bits in V5
}

type attribute struct {
	name  string
	vType uint32
	raw   []byte // big-endian values, without padding
}

type variable struct {
	name    string
	dimids  []uint64 // 64-bits in V5
	attrs   []attribute
	vType   uint32
	vsize   uint64 // 64-bits in V5
	begin   uint64 // 32-bits in V1, 64-bits in V2
	fillRaw []byte
}

type decoder struct {
	r       io.ReadSeeker
	size    int64
	version uint8
	numRecs uint64 // 64-bits in V5
	dims    []dimension
	attrs   []attribute
	vars    []*variable
}

// Decode reads a whole file. Variables that end past the end of the file
// (written without fill) read back their fill value.
func (Engine) Decode(r io.ReadSeeker) (ds *api.Dataset, err error) {
	defer thrower.RecoverError(&err)
	d := &decoder{r: r}
	d.size, err = r.Seek(0, io.SeekEnd)
	thrower.ThrowIfError(err)
	_, err = r.Seek(0, io.SeekStart)
	thrower.ThrowIfError(err)

	d.readHeader(bufio.NewReader(r))
	ds = d.dataset()
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrCorrupted, err)
	}
	logger.Infof("decoded CDF v%d: %d dimensions, %d variables, %d records",
		d.version, len(ds.Dims), len(ds.Vars), d.numRecs)
	return ds, nil
}

func read32(bf io.Reader) uint32 {
	var n uint32
	util.MustReadBE(bf, &n)
	return n
}

func (d *decoder) readNumber(bf io.Reader) uint64 {
	if d.version < 5 {
		return uint64(read32(bf))
	}
	var n uint64
	util.MustReadBE(bf, &n)
	return n
}

func (d *decoder) skipPadding(bf io.Reader, n uint64) {
	util.MustReadRaw(bf, int(pad4(int64(n))))
}

func (d *decoder) readName(bf io.Reader) string {
	n := d.readNumber(bf)
	assertError(n > 0 && n <= uint64(d.size), api.ErrCorrupted, fmt.Sprint("bad name length ", n))
	name := util.MustReadRaw(bf, int(n))
	d.skipPadding(bf, n)
	assertError(utf8.Valid(name), api.ErrCorrupted, "name is not UTF-8")
	return string(name)
}

func (d *decoder) readHeader(bf io.Reader) {
	head := make([]byte, len(magic))
	_, err := io.ReadFull(bf, head)
	if err != nil || string(head) != magic {
		thrower.Throw(ErrBadMagic)
	}
	d.version = util.MustRead8(bf)
	switch d.version {
	case 1, 2, 5:
	default:
		failError(ErrVersion, fmt.Sprint("version ", d.version))
	}
	d.numRecs = d.readNumber(bf)
	if d.version < 5 && d.numRecs == math.MaxUint32 {
		thrower.Throw(ErrStreaming)
	}
	assertError(d.numRecs <= util.MaxLength, api.ErrCorrupted, fmt.Sprint("record count ", d.numRecs))

	n := d.getNElems(bf, fieldDimension)
	assertError(n <= maxDimensions, api.ErrCorrupted, fmt.Sprint("too many dimensions: ", n))
	for range n {
		name := d.readName(bf)
		length := d.readNumber(bf)
		assertError(length <= util.MaxLength, api.ErrCorrupted,
			fmt.Sprintf("dimension %q has length %d", name, length))
		d.dims = append(d.dims, dimension{name, length})
	}
	d.attrs = d.getAttrList(bf)

	n = d.getNElems(bf, fieldVariable)
	assertError(n <= maxCount, api.ErrCorrupted, fmt.Sprint("too many variables: ", n))
	for range n {
		d.vars = append(d.vars, d.getVar(bf))
	}
}

func (d *decoder) getNElems(bf io.Reader, expectedField uint32) uint64 {
	fieldType := read32(bf)
	nElems := d.readNumber(bf) // FYI: 64-bit in V5
	switch fieldType {
	case 0: // type absent
		assertError(nElems == 0, api.ErrCorrupted,
			fmt.Sprint("corrupted file, elems with absent field, expected: ", expectedField, nElems))

	case expectedField:
	default:
		failError(api.ErrCorrupted, fmt.Sprint("corrupted file, unexpected field: ", fieldType))
	}
	return nElems
}

func (d *decoder) getAttr(bf io.Reader) attribute {
	a := attribute{name: d.readName(bf)}
	a.vType = read32(bf)
	width := typeWidth(a.vType)
	assertError(width > 0, ErrUnknownType, fmt.Sprintf("attribute %q has type %d", a.name, a.vType))
	n := d.readNumber(bf)
	assertError(n <= uint64(d.size), api.ErrCorrupted, fmt.Sprintf("attribute %q is too long", a.name))
	nbytes := n * uint64(width)
	a.raw = util.MustReadRaw(bf, int(nbytes))
	d.skipPadding(bf, nbytes)
	return a
}

func (d *decoder) getAttrList(bf io.Reader) []attribute {
	n := d.getNElems(bf, fieldAttribute)
	assertError(n <= maxCount, api.ErrCorrupted, fmt.Sprint("too many attributes: ", n))
	var attrs []attribute
	seen := map[string]bool{}
	for range n {
		a := d.getAttr(bf)
		assertError(!seen[a.name], api.ErrCorrupted, fmt.Sprintf("duplicate attribute %q", a.name))
		seen[a.name] = true
		attrs = append(attrs, a)
	}
	return attrs
}

func (d *decoder) getVar(bf io.Reader) *variable {
	v := &variable{name: d.readName(bf)}
	ndims := d.readNumber(bf)
	assertError(ndims <= maxDimensions, api.ErrCorrupted, fmt.Sprintf("variable %q has too many dimensions", v.name))
	for range ndims {
		id := d.readNumber(bf)
		assertError(id < uint64(len(d.dims)), api.ErrCorrupted,
			fmt.Sprintf("variable %q uses dimension id %d", v.name, id))
		v.dimids = append(v.dimids, id)
	}
	v.attrs = d.getAttrList(bf)
	v.vType = read32(bf)
	assertError(typeWidth(v.vType) > 0, ErrUnknownType, fmt.Sprintf("variable %q has type %d", v.name, v.vType))
	v.vsize = d.readNumber(bf)
	if d.version == 1 {
		v.begin = uint64(read32(bf))
	} else {
		util.MustReadBE(bf, &v.begin)
	}
	return v
}

func (d *decoder) recordDim() int {
	for i, dim := range d.dims {
		if dim.dimLength == 0 {
			return i
		}
	}
	return -1
}

func isRecord(v *variable, recDim int) bool {
	return recDim >= 0 && len(v.dimids) > 0 && v.dimids[0] == uint64(recDim)
}

// slab returns the bytes of one record of a record variable, or of the
// whole of any other variable.
func (d *decoder) slab(v *variable, recDim int) int64 {
	n := typeWidth(v.vType)
	for i, id := range v.dimids {
		if i == 0 && isRecord(v, recDim) {
			continue
		}
		n *= int64(d.dims[id].dimLength)
		assertError(n <= maxVarBytes, api.ErrCorrupted, fmt.Sprintf("variable %q is too large", v.name))
	}
	return n
}

func (d *decoder) dataset() *api.Dataset {
	ds := api.NewDataset()
	recDim := d.recordDim()

	// Dimensions only ever used as the string length of char variables
	// are not part of the dataset.
	strDims := map[uint64]bool{}
	for _, v := range d.vars {
		if v.vType == typeChar && len(v.dimids) >= 2 {
			strDims[v.dimids[len(v.dimids)-1]] = true
		}
	}
	for _, v := range d.vars {
		ids := v.dimids
		if v.vType == typeChar && len(ids) >= 2 {
			ids = ids[:len(ids)-1]
		}
		for _, id := range ids {
			delete(strDims, id)
		}
	}
	for i, dim := range d.dims {
		if strDims[uint64(i)] {
			continue
		}
		length := dim.dimLength
		if i == recDim {
			length = d.numRecs
		}
		ds.Dims = append(ds.Dims, &api.Dim{Name: dim.name, Length: int(length), Unlimited: i == recDim})
	}

	for _, a := range d.attrs {
		ds.Attrs.Add(a.name, a.array())
	}
	// Written by the netCDF library, not by users.
	ds.Attrs.Hide(ncpKey)

	var recVars []*variable
	for _, v := range d.vars {
		if isRecord(v, recDim) {
			recVars = append(recVars, v)
		}
	}
	var recSize int64
	for _, v := range recVars {
		s := d.slab(v, recDim)
		recSize += s + pad4(s)
	}
	if len(recVars) == 1 {
		// A lone record variable is not padded between records.
		recSize = d.slab(recVars[0], recDim)
	}

	for _, v := range d.vars {
		if len(v.dimids) == 0 {
			logger.Warnf("skipping scalar variable %q", v.name)
			ds.Dropped = append(ds.Dropped, v.name)
			continue
		}
		ds.Vars = append(ds.Vars, d.readVar(v, recDim, recSize))
	}
	return ds
}

func (d *decoder) readVar(v *variable, recDim int, recSize int64) *api.Var {
	assertError(v.vType != typeUInt64, ErrUnsignedInt64, v.name)
	out := &api.Var{Name: v.name, Type: registryType(v.vType), Attrs: api.NewAttributeMap()}
	d.setParams(out, v)

	ids := v.dimids
	strLen := int64(1)
	if v.vType == typeChar && len(ids) >= 2 {
		strLen = int64(d.dims[ids[len(ids)-1]].dimLength)
		ids = ids[:len(ids)-1]
	}
	shape := make([]int, len(ids))
	for i, id := range ids {
		out.Dims = append(out.Dims, d.dims[id].name)
		length := d.dims[id].dimLength
		if int(id) == recDim {
			length = d.numRecs
		}
		shape[i] = int(length)
	}

	fill := v.fillRaw
	if len(fill) == 0 {
		fill = defaultFill[v.vType]
	}
	rowBytes := d.slab(v, recDim)
	rows := int64(1)
	if isRecord(v, recDim) {
		rows = int64(d.numRecs)
	}
	assertError(rowBytes == 0 || rows <= maxVarBytes/rowBytes, api.ErrCorrupted,
		fmt.Sprintf("variable %q is too large", v.name))

	raw := make([]byte, rowBytes*rows)
	if isRecord(v, recDim) {
		for i := range rows {
			d.readSection(v.name, raw[i*rowBytes:(i+1)*rowBytes], int64(v.begin)+i*recSize, fill)
		}
	} else {
		d.readSection(v.name, raw, int64(v.begin), fill)
	}
	out.Data = decodeData(raw, v.vType, shape, strLen)
	return out
}

// readSection fills p from the file at begin. Whatever lies past the end of
// the file is filled with the fill pattern.
func (d *decoder) readSection(name string, p []byte, begin int64, fill []byte) {
	avail := min(int64(len(p)), max(d.size-begin, 0))
	if avail > 0 {
		_, err := d.r.Seek(begin, io.SeekStart)
		thrower.ThrowIfError(err)
		_, err = io.ReadFull(d.r, p[:avail])
		thrower.ThrowIfError(err)
	}
	if avail == int64(len(p)) {
		return
	}
	logger.Infof("variable %q extends past the end of the file, using fill values", name)
	fr := internal.NewFillReader(fill)
	// Keep the pattern aligned with the element boundaries.
	_, err := io.CopyN(io.Discard, fr, avail%int64(max(len(fill), 1)))
	thrower.ThrowIfError(err)
	_, err = io.ReadFull(fr, p[avail:])
	thrower.ThrowIfError(err)
}

// setParams moves the bookkeeping attributes into out.Params and copies
// the rest.
func (d *decoder) setParams(out *api.Var, v *variable) {
	p := &out.Params
	for _, a := range v.attrs {
		switch a.name {
		case fillValueKey:
			arr := a.array()
			if a.vType == v.vType && (arr.Len() == 1 || a.vType == typeChar) {
				p.Fill = arr.Index(0)
				v.fillRaw = a.raw
				continue
			}
			logger.Warnf("variable %q: _FillValue does not match the variable type", v.name)

		case chunkSizesKey:
			if chunks, ok := a.array().Data.([]int32); ok && len(chunks) == chunkRank(v) {
				for _, c := range chunks {
					p.Chunks = append(p.Chunks, int(c))
				}
				continue
			}
			logger.Warnf("variable %q: ignoring malformed _ChunkSizes", v.name)

		case compressionKey:
			if a.vType == typeChar {
				c, err := api.ParseCompression(string(a.raw))
				if err == nil {
					p.Compression = c
					continue
				}
				logger.Warn(err)
			}

		case levelKey:
			if level, ok := a.array().Data.([]int32); ok && len(level) == 1 {
				p.Level = int(level[0])
				continue
			}

		case shuffleKey:
			if a.vType == typeChar && strings.EqualFold(string(a.raw), "true") {
				p.Shuffle = true
				continue
			}
		}
		out.Attrs.Add(a.name, a.array())
	}
}

// chunkRank is the number of chunk lengths a variable takes: its rank,
// without the string length dimension.
func chunkRank(v *variable) int {
	if v.vType == typeChar && len(v.dimids) >= 2 {
		return len(v.dimids) - 1
	}
	return len(v.dimids)
}

// array converts the attribute into its registry representation. A single
// value is a scalar. Char data is one string, or a vector of strings when
// it ends with a NUL, in which case NULs separate the elements.
func (a attribute) array() *types.Array {
	if a.vType == typeChar {
		s := string(a.raw)
		vals := []string{s}
		if strings.HasSuffix(s, "\x00") {
			vals = strings.Split(strings.TrimSuffix(s, "\x00"), "\x00")
		}
		return &types.Array{Type: types.String, Shape: attrShape(len(vals)), Data: vals}
	}
	n := len(a.raw) / int(typeWidth(a.vType))
	return &types.Array{
		Type:  registryType(a.vType),
		Shape: attrShape(n),
		Data:  readValues(bytes.NewReader(a.raw), a.vType, n),
	}
}

func attrShape(n int) []int {
	if n == 1 {
		return nil
	}
	return []int{n}
}

func decodeData(raw []byte, vType uint32, shape []int, strLen int64) *types.Array {
	a := &types.Array{Type: registryType(vType), Shape: shape}
	n := types.Product(shape)
	if vType != typeChar {
		a.Data = readValues(bytes.NewReader(raw), vType, n)
		return a
	}
	s := make([]string, n)
	for i := range s {
		elem := raw[int64(i)*strLen : int64(i+1)*strLen]
		s[i] = strings.TrimRight(string(elem), "\x00")
	}
	a.Data = s
	return a
}

// readValues reads n big-endian values of a CDF numeric type, widening
// the types the registry does not have.
func readValues(r io.Reader, vType uint32, n int) any {
	switch vType {
	case typeByte:
		b := make([]int8, n)
		util.MustReadBE(r, b)
		return widen[int16](b)
	case typeUByte:
		b := make([]uint8, n)
		util.MustReadBE(r, b)
		return widen[int16](b)
	case typeShort:
		s := make([]int16, n)
		util.MustReadBE(r, s)
		return s
	case typeUShort:
		s := make([]uint16, n)
		util.MustReadBE(r, s)
		return widen[int32](s)
	case typeInt:
		i := make([]int32, n)
		util.MustReadBE(r, i)
		return i
	case typeUInt:
		i := make([]uint32, n)
		util.MustReadBE(r, i)
		return widen[int64](i)
	case typeInt64:
		i := make([]int64, n)
		util.MustReadBE(r, i)
		return i
	case typeFloat:
		f := make([]float32, n)
		util.MustReadBE(r, f)
		return f
	case typeDouble:
		f := make([]float64, n)
		util.MustReadBE(r, f)
		return f
	case typeUInt64:
		thrower.Throw(ErrUnsignedInt64)
	}
	failError(ErrUnknownType, fmt.Sprint("type ", vType))
	return nil
}

func widen[T int16 | int32 | int64, S int8 | uint8 | uint16 | uint32](in []S) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}
