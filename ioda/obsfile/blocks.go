package obsfile

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
	"github.com/batchatco/go-native-ioda/ioda/util"
)

// block is one stored chunk of a variable: a run of whole rows along the
// first axis.
type block struct {
	codec   api.Compression
	rawLen  uint32
	sum     uint32
	payload []byte
}

// rowsPerBlock is the first chunk length, bounded by the number of rows.
func rowsPerBlock(params api.Params, shape []int) int {
	rows := 1
	if len(shape) > 0 {
		rows = shape[0]
	}
	if len(params.Chunks) > 0 && params.Chunks[0] > 0 && params.Chunks[0] < rows {
		return params.Chunks[0]
	}
	return max(rows, 1)
}

func numRows(shape []int) int {
	if len(shape) == 0 {
		return 1
	}
	return shape[0]
}

func elementWidth(t types.Type) int {
	desc, err := types.Describe(t)
	if err != nil || desc.IsString {
		return 1
	}
	return desc.Width
}

// encodeBlocks splits data into blocks and compresses them concurrently.
func encodeBlocks(params api.Params, data *types.Array) (int, []block, error) {
	rows := rowsPerBlock(params, data.Shape)
	rowSize := types.RowSize(data.Shape)
	nrows := numRows(data.Shape)
	if rowSize == 0 || nrows == 0 {
		return rows, nil, nil
	}
	blocks := make([]block, (nrows+rows-1)/rows)
	width := elementWidth(data.Type)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range blocks {
		g.Go(func() error {
			begin := i * rows
			end := min(begin+rows, nrows)
			raw, err := encodeElements(data.Slice(begin*rowSize, end*rowSize, nil))
			if err != nil {
				return err
			}
			if params.Shuffle {
				raw = shuffle(raw, width)
			}
			codec, payload, err := compress(params.Compression, params.Level, raw)
			if err != nil {
				return err
			}
			blocks[i] = block{
				codec:   codec,
				rawLen:  uint32(len(raw)),
				sum:     util.Checksum(payload),
				payload: payload,
			}
			return nil
		})
	}
	return rows, blocks, g.Wait()
}

// decodeBlocks verifies, decompresses and decodes blocks concurrently into
// a new array of the given shape.
func decodeBlocks(t types.Type, params api.Params, shape []int, rows int, blocks []block) (*types.Array, error) {
	rowSize := types.RowSize(shape)
	nrows := numRows(shape)
	want := 0
	if rowSize > 0 && nrows > 0 {
		want = (nrows + rows - 1) / rows
	}
	if len(blocks) != want {
		return nil, fmt.Errorf("%w: %d blocks of %d rows for shape %v",
			api.ErrCorrupted, len(blocks), rows, shape)
	}
	// Bound the allocation by what is actually stored.
	total := 0
	for _, b := range blocks {
		total += int(b.rawLen)
	}
	n := types.Product(shape)
	if desc, _ := types.Describe(t); desc.IsString && n*4 > total || !desc.IsString && n*desc.Width != total {
		return nil, fmt.Errorf("%w: %d stored bytes for %d elements of %v",
			api.ErrCorrupted, total, n, t)
	}
	out, err := types.MakeArray(t, shape)
	if err != nil {
		return nil, err
	}
	width := elementWidth(t)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, b := range blocks {
		g.Go(func() error {
			if util.Checksum(b.payload) != b.sum {
				return fmt.Errorf("%w: checksum mismatch in block %d", api.ErrCorrupted, i)
			}
			raw, err := decompress(b.codec, b.payload, int(b.rawLen))
			if err != nil {
				return err
			}
			if params.Shuffle {
				raw = unshuffle(raw, width)
			}
			begin := i * rows
			end := min(begin+rows, nrows)
			return decodeElements(out.Slice(begin*rowSize, end*rowSize, nil), raw)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
