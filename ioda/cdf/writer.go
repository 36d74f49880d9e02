package cdf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/batchatco/go-thrower"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
	"github.com/batchatco/go-native-ioda/ioda/util"
)

type countedWriter struct {
	w     io.Writer
	count int64
}

func (c *countedWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

func (c *countedWriter) Count() int64 {
	return c.count
}

type outDim struct {
	name   string
	length int64 // 0 for the record dimension
}

type savedVar struct {
	v      *api.Var
	ty     uint32
	dimIDs []int64
	names  []string
	values []*types.Array
	shape  []int
	strLen int
	record bool
	slab   int64 // bytes per record, or of the whole variable
	begin  int64
	fill   []byte
}

type encoder struct {
	ds      *api.Dataset
	dims    []outDim
	vars    []*savedVar
	recDim  string
	numRecs int64
	recSize int64
}

// Encode writes ds as a version 5 file. Every name must be free of slashes
// and ds must have no groups; hierarchical datasets are flattened first.
func (Engine) Encode(w io.Writer, ds *api.Dataset) (err error) {
	defer thrower.RecoverError(&err)
	thrower.ThrowIfError(ds.Validate())

	e := newEncoder(ds)
	var header bytes.Buffer
	e.writeHeader(&header)
	e.layout(int64(header.Len()))
	header.Reset()
	e.writeHeader(&header)

	bw := bufio.NewWriter(w)
	cw := &countedWriter{w: bw}
	util.MustWriteRaw(cw, header.Bytes())
	e.writeData(cw)
	thrower.ThrowIfError(bw.Flush())
	logger.Infof("encoded CDF v%d: %d dimensions, %d variables, %d records, %d bytes",
		writeVersion, len(e.dims), len(e.vars), e.numRecs, cw.Count())
	return nil
}

func checkName(kind, name string) {
	assertError(name != "" && !strings.ContainsAny(name, "/\x00"), api.ErrInvalidName,
		fmt.Sprintf("%s name %q cannot be stored in a CDF file", kind, name))
}

func newEncoder(ds *api.Dataset) *encoder {
	if len(ds.Groups) > 0 {
		thrower.Throw(ErrGroups)
	}
	e := &encoder{ds: ds}
	if d, has := ds.Unlimited(); has {
		e.recDim = d.Name
		for _, v := range ds.Vars {
			if i := slices.Index(v.Dims, d.Name); i > 0 {
				logger.Warnf("variable %q uses %q after its first dimension, storing it as fixed size",
					v.Name, d.Name)
				e.recDim = ""
				break
			}
		}
	}
	dimIDs := map[string]int64{}
	for _, d := range ds.Dims {
		checkName("dimension", d.Name)
		dimIDs[d.Name] = int64(len(e.dims))
		if d.Name == e.recDim {
			e.numRecs = int64(d.Length)
			e.dims = append(e.dims, outDim{d.Name, 0})
			continue
		}
		e.dims = append(e.dims, outDim{d.Name, int64(d.Length)})
	}

	for _, v := range ds.Vars {
		checkName("variable", v.Name)
		sv := &savedVar{v: v, ty: ncType(v.Type)}
		sv.shape, _ = ds.Shape(v)
		sv.record = v.Dims[0] == e.recDim
		for _, name := range v.Dims {
			sv.dimIDs = append(sv.dimIDs, dimIDs[name])
		}
		fill := v.FillValue()
		if v.Type == types.String {
			sv.strLen = stringLength(v)
			strDim := stringLenPrefix + v.Name
			_, taken := dimIDs[strDim]
			assertError(!taken, api.ErrDuplicateDimension, strDim)
			dimIDs[strDim] = int64(len(e.dims))
			sv.dimIDs = append(sv.dimIDs, int64(len(e.dims)))
			e.dims = append(e.dims, outDim{strDim, int64(sv.strLen)})
			sv.fill = charBytes(fill.(string), sv.strLen)
		} else {
			var b bytes.Buffer
			util.MustWriteBE(&b, fill)
			sv.fill = b.Bytes()
		}
		sv.names, sv.values = varAttrs(v)
		e.vars = append(e.vars, sv)
	}
	return e
}

// stringLength is the width of the char dimension of a string variable: the
// longest value, or the fill value when the variable was never written.
func stringLength(v *api.Var) int {
	n := len(v.FillValue().(string))
	if v.Data != nil {
		for _, s := range v.Data.Data.([]string) {
			n = max(n, len(s))
		}
	}
	return max(n, 1)
}

func charBytes(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

// varAttrs returns the attributes to write for v: its own, then the
// bookkeeping attributes that carry its creation parameters.
func varAttrs(v *api.Var) ([]string, []*types.Array) {
	var names []string
	var values []*types.Array
	add := func(name string, a *types.Array) {
		assertError(!slices.Contains(names, name), api.ErrDuplicateAttribute,
			fmt.Sprintf("variable %q: attribute %q", v.Name, name))
		names = append(names, name)
		values = append(values, a)
	}
	for name, a := range v.Attrs.All() {
		add(name, a)
	}
	p := v.Params
	if p.Fill != nil {
		fill, err := types.FillArray(v.Type, nil, p.Fill)
		thrower.ThrowIfError(err)
		add(fillValueKey, fill)
	}
	if p.Chunks != nil {
		chunks := make([]int32, len(p.Chunks))
		for i, c := range p.Chunks {
			chunks[i] = int32(c)
		}
		add(chunkSizesKey, &types.Array{Type: types.Int32, Shape: []int{len(chunks)}, Data: chunks})
	}
	if p.Compression != api.CompressionNone {
		logger.Warnf("variable %q: CDF files have no filters, storing it without %v compression",
			v.Name, p.Compression)
		add(compressionKey, &types.Array{Type: types.String, Data: []string{p.Compression.String()}})
	}
	if p.Level != 0 {
		add(levelKey, &types.Array{Type: types.Int32, Data: []int32{int32(p.Level)}})
	}
	if p.Shuffle {
		add(shuffleKey, &types.Array{Type: types.String, Data: []string{"true"}})
	}
	return names, values
}

// layout assigns the data offsets: fixed size variables in order right
// after the header, then the records.
func (e *encoder) layout(headerSize int64) {
	offset := headerSize
	var recVars []*savedVar
	for _, sv := range e.vars {
		width := typeWidth(sv.ty) * int64(max(sv.strLen, 1))
		if sv.record {
			sv.slab = width * int64(types.RowSize(sv.shape))
			recVars = append(recVars, sv)
			continue
		}
		sv.slab = width * int64(types.Product(sv.shape))
		sv.begin = offset
		offset += sv.slab + pad4(sv.slab)
	}
	for _, sv := range recVars {
		sv.begin = offset + e.recSize
		e.recSize += sv.slab + pad4(sv.slab)
	}
	if len(recVars) == 1 {
		// special case: a lone record variable is not padded
		e.recSize = recVars[0].slab
	}
}

func writeNumber(w io.Writer, n int64) {
	// 64 bits in V5
	util.MustWriteBE(w, uint64(n))
}

func writeName(w io.Writer, name string) {
	writeNumber(w, int64(len(name)))
	util.MustWriteRaw(w, []byte(name))
	pad(w, int64(len(name)))
}

func pad(w io.Writer, n int64) {
	util.MustWriteRaw(w, make([]byte, pad4(n)))
}

func (e *encoder) writeHeader(w io.Writer) {
	util.MustWriteRaw(w, []byte(magic))
	util.MustWriteBE(w, uint8(writeVersion))
	writeNumber(w, e.numRecs)

	if len(e.dims) == 0 {
		util.MustWriteBE(w, uint32(0))
		writeNumber(w, 0)
	} else {
		util.MustWriteBE(w, uint32(fieldDimension))
		writeNumber(w, int64(len(e.dims)))
		for _, d := range e.dims {
			writeName(w, d.name)
			writeNumber(w, d.length)
		}
	}

	var names []string
	var values []*types.Array
	for name, a := range e.ds.Attrs.All() {
		checkName("attribute", name)
		names = append(names, name)
		values = append(values, a)
	}
	writeAttributes(w, names, values)

	if len(e.vars) == 0 {
		util.MustWriteBE(w, uint32(0))
		writeNumber(w, 0)
		return
	}
	util.MustWriteBE(w, uint32(fieldVariable))
	writeNumber(w, int64(len(e.vars)))
	for _, sv := range e.vars {
		writeName(w, sv.v.Name)
		writeNumber(w, int64(len(sv.dimIDs)))
		for _, id := range sv.dimIDs {
			writeNumber(w, id)
		}
		writeAttributes(w, sv.names, sv.values)
		util.MustWriteBE(w, sv.ty)
		writeNumber(w, sv.slab+pad4(sv.slab))
		util.MustWriteBE(w, uint64(sv.begin))
	}
}

func writeAttributes(w io.Writer, names []string, values []*types.Array) {
	if len(names) == 0 {
		util.MustWriteBE(w, uint32(0))
		writeNumber(w, 0)
		return
	}
	util.MustWriteBE(w, uint32(fieldAttribute))
	writeNumber(w, int64(len(names)))
	for i, name := range names {
		a := values[i]
		writeName(w, name)
		util.MustWriteBE(w, ncType(a.Type))
		if a.Type == types.String {
			text := attrText(name, a.Data.([]string))
			writeNumber(w, int64(len(text)))
			util.MustWriteRaw(w, []byte(text))
			pad(w, int64(len(text)))
			continue
		}
		writeNumber(w, int64(a.Len()))
		util.MustWriteBE(w, a.Data)
		pad(w, int64(a.Len())*typeWidth(ncType(a.Type)))
	}
}

// attrText is the char data of a string attribute: a single value as is, or
// every value terminated by a NUL.
func attrText(name string, vals []string) string {
	for _, s := range vals {
		assertError(!strings.Contains(s, "\x00"), ErrNulInAttribute, name)
	}
	if len(vals) == 1 {
		return vals[0]
	}
	var sb strings.Builder
	for _, s := range vals {
		sb.WriteString(s)
		sb.WriteByte(0)
	}
	return sb.String()
}

func (e *encoder) writeData(cw *countedWriter) {
	var recVars []*savedVar
	for _, sv := range e.vars {
		if sv.record {
			recVars = append(recVars, sv)
			continue
		}
		assertError(cw.Count() == sv.begin, errInternal,
			fmt.Sprintf("variable %q at offset %d, expected %d", sv.v.Name, cw.Count(), sv.begin))
		n := types.Product(sv.shape)
		e.writeElements(cw, sv, 0, n)
		pad(cw, sv.slab)
	}
	for rec := range e.numRecs {
		for _, sv := range recVars {
			row := types.RowSize(sv.shape)
			begin := int(rec) * row
			e.writeElements(cw, sv, begin, begin+row)
			if len(recVars) > 1 {
				pad(cw, sv.slab)
			}
		}
	}
}

// writeElements writes the flat elements [begin, end) of a variable, or its
// fill value when it was never written.
func (e *encoder) writeElements(w io.Writer, sv *savedVar, begin, end int) {
	if sv.v.Data == nil {
		thrower.ThrowIfError(internal.WriteFill(w, sv.fill, int64(end-begin)))
		return
	}
	if sv.v.Type != types.String {
		util.MustWriteBE(w, sv.v.Data.Slice(begin, end, nil).Data)
		return
	}
	for _, s := range sv.v.Data.Data.([]string)[begin:end] {
		util.MustWriteRaw(w, charBytes(s, sv.strLen))
	}
}
