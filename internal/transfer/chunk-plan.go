package transfer

import (
	"fmt"
	"io"
	"iter"
	"math"
	"strconv"
	"strings"

	"github.com/tanq16/xferbench/internal/utils"
)

// ChunkRange is an inclusive byte range [Start, End].
type ChunkRange struct {
	Index int
	Start int64
	End   int64
}

func (r ChunkRange) Len() int64 {
	return r.End - r.Start + 1
}

func (r ChunkRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// ChunkPlan describes the ranges of an object without materializing them, so
// any total a server reports can be planned.
type ChunkPlan struct {
	Total     int64
	ChunkSize int64
	count     int64
}

// NewChunkPlan splits total bytes into contiguous ranges of at most chunkSize
// bytes; only the last range may be shorter. A non-positive chunkSize selects
// the default.
func NewChunkPlan(total, chunkSize int64) (*ChunkPlan, error) {
	if total < 0 {
		return nil, fmt.Errorf("invalid total length %d", total)
	}
	if chunkSize <= 0 {
		chunkSize = utils.DefaultChunkSize
	}
	count := total / chunkSize
	if total%chunkSize != 0 {
		count++
	}
	if count > math.MaxInt {
		return nil, fmt.Errorf("total length %d needs too many chunks of %d bytes", total, chunkSize)
	}
	return &ChunkPlan{Total: total, ChunkSize: chunkSize, count: count}, nil
}

func (p *ChunkPlan) Len() int {
	return int(p.count)
}

// Range returns the i-th range. i must be in [0, Len()).
func (p *ChunkPlan) Range(i int) ChunkRange {
	start := int64(i) * p.ChunkSize
	return ChunkRange{
		Index: i,
		Start: start,
		End:   start + min(p.ChunkSize, p.Total-start) - 1,
	}
}

// Ranges yields every range in offset order.
func (p *ChunkPlan) Ranges() iter.Seq2[int, ChunkRange] {
	return func(yield func(int, ChunkRange) bool) {
		for i := range p.Len() {
			if !yield(i, p.Range(i)) {
				return
			}
		}
	}
}

// parseContentRange parses "bytes start-end/total". total is -1 when the
// server sends "*"; start and end are -1 for "bytes */total".
func parseContentRange(value string) (start, end, total int64, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", value)
	}
	rng, size, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", value)
	}
	total = -1
	if size != "*" {
		if total, err = strconv.ParseInt(size, 10, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", value)
		}
	}
	if rng == "*" {
		return -1, -1, total, nil
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", value)
	}
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", value)
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", value)
	}
	return start, end, total, nil
}

// checkContentRange verifies a ranged response covers exactly r.
func checkContentRange(value string, r ChunkRange) error {
	if value == "" {
		return fmt.Errorf("%w: missing Content-Range header", utils.ErrRangeMismatch)
	}
	start, end, _, err := parseContentRange(value)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrRangeMismatch, err)
	}
	if start != r.Start || end != r.End {
		return fmt.Errorf("%w: requested %d-%d, got %d-%d", utils.ErrRangeMismatch, r.Start, r.End, start, end)
	}
	return nil
}

// copyRange copies exactly r.Len() bytes of body to w. A short body or any
// byte past the range is ErrLengthMismatch.
func copyRange(w io.Writer, body io.Reader, r ChunkRange) (int64, error) {
	buffer := make([]byte, utils.DefaultBufferSize)
	n, err := io.CopyBuffer(w, io.LimitReader(body, r.Len()), buffer)
	if err != nil {
		return n, err
	}
	if n != r.Len() {
		return n, fmt.Errorf("%w: expected %d bytes for range %d-%d, received %d", utils.ErrLengthMismatch, r.Len(), r.Start, r.End, n)
	}
	if extra, _ := io.Copy(io.Discard, io.LimitReader(body, 1)); extra > 0 {
		return n, fmt.Errorf("%w: more than %d bytes sent for range %d-%d", utils.ErrLengthMismatch, r.Len(), r.Start, r.End)
	}
	return n, nil
}
