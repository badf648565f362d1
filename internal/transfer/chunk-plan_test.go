package transfer

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/xferbench/internal/utils"
)

func TestNewChunkPlan_Examples(t *testing.T) {
	tests := []struct {
		total     int64
		chunkSize int64
		expected  [][2]int64
	}{
		{total: 300, chunkSize: 100, expected: [][2]int64{{0, 99}, {100, 199}, {200, 299}}},
		{total: 250, chunkSize: 100, expected: [][2]int64{{0, 99}, {100, 199}, {200, 249}}},
		{total: 100, chunkSize: 100, expected: [][2]int64{{0, 99}}},
		{total: 101, chunkSize: 100, expected: [][2]int64{{0, 99}, {100, 100}}},
		{total: 1, chunkSize: 100, expected: [][2]int64{{0, 0}}},
		{total: 5, chunkSize: 1, expected: [][2]int64{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}}},
		{total: 0, chunkSize: 100, expected: nil},
	}

	for _, tt := range tests {
		plan, err := NewChunkPlan(tt.total, tt.chunkSize)
		require.NoError(t, err)
		var got [][2]int64
		for i, r := range plan.Ranges() {
			assert.Equal(t, i, r.Index)
			got = append(got, [2]int64{r.Start, r.End})
		}
		assert.Equal(t, tt.expected, got, "total=%d chunk=%d", tt.total, tt.chunkSize)
	}
}

func TestNewChunkPlan_Properties(t *testing.T) {
	for _, total := range []int64{0, 1, 2, 99, 100, 101, 999, 1000, 1001, 4096, 12345} {
		for _, chunkSize := range []int64{1, 2, 3, 7, 100, 1000, 4096, 100000} {
			plan, err := NewChunkPlan(total, chunkSize)
			require.NoError(t, err)

			assert.Equal(t, int((total+chunkSize-1)/chunkSize), plan.Len())
			next := int64(0)
			for i, r := range plan.Ranges() {
				assert.Equal(t, next, r.Start, "contiguous")
				assert.LessOrEqual(t, r.Len(), chunkSize)
				assert.Positive(t, r.Len())
				if i < plan.Len()-1 {
					assert.Equal(t, chunkSize, r.Len(), "only the last range may be short")
				}
				next = r.End + 1
			}
			assert.Equal(t, total, next, "covers the full length")
		}
	}
}

func TestNewChunkPlan_DefaultsAndErrors(t *testing.T) {
	plan, err := NewChunkPlan(10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(utils.DefaultChunkSize), plan.ChunkSize)
	assert.Equal(t, 1, plan.Len())

	_, err = NewChunkPlan(-1, 10)
	assert.Error(t, err)
}

func TestNewChunkPlan_HugeTotals(t *testing.T) {
	const maxTotal = int64(math.MaxInt64)

	plan, err := NewChunkPlan(maxTotal, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, int(maxTotal/(1<<20)+1), plan.Len())

	first := plan.Range(0)
	assert.Equal(t, int64(0), first.Start)
	assert.Equal(t, int64(1<<20-1), first.End)

	last := plan.Range(plan.Len() - 1)
	assert.Equal(t, maxTotal-1, last.End)
	assert.Positive(t, last.Len())
	assert.LessOrEqual(t, last.Len(), int64(1<<20))

	plan, err = NewChunkPlan(maxTotal, maxTotal-1)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Len())
	assert.Equal(t, int64(1), plan.Range(1).Len())
	assert.Equal(t, maxTotal-1, plan.Range(1).End)

	plan, err = NewChunkPlan(maxTotal, 1)
	require.NoError(t, err)
	assert.Equal(t, int(maxTotal), plan.Len())
	assert.Equal(t, "bytes=9223372036854775806-9223372036854775806", plan.Range(plan.Len()-1).Header())
}

func TestChunkRange_Header(t *testing.T) {
	assert.Equal(t, "bytes=100-199", ChunkRange{Start: 100, End: 199}.Header())
	assert.Equal(t, int64(100), ChunkRange{Start: 100, End: 199}.Len())
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		value             string
		start, end, total int64
		wantErr           bool
	}{
		{value: "bytes 0-99/300", start: 0, end: 99, total: 300},
		{value: "bytes 200-249/*", start: 200, end: 249, total: -1},
		{value: "bytes */0", start: -1, end: -1, total: 0},
		{value: "bytes 0-0/1", start: 0, end: 0, total: 1},
		{value: "0-99/300", wantErr: true},
		{value: "bytes 0-99", wantErr: true},
		{value: "bytes a-99/300", wantErr: true},
		{value: "bytes 0-b/300", wantErr: true},
		{value: "bytes 0-99/x", wantErr: true},
	}
	for _, tt := range tests {
		start, end, total, err := parseContentRange(tt.value)
		if tt.wantErr {
			assert.Error(t, err, tt.value)
			continue
		}
		require.NoError(t, err, tt.value)
		assert.Equal(t, []int64{tt.start, tt.end, tt.total}, []int64{start, end, total}, tt.value)
	}
}

func TestCheckContentRange(t *testing.T) {
	r := ChunkRange{Start: 100, End: 199}
	assert.NoError(t, checkContentRange("bytes 100-199/300", r))
	for _, value := range []string{"", "bytes 101-199/300", "bytes 100-198/300", "garbage"} {
		err := checkContentRange(value, r)
		assert.True(t, errors.Is(err, utils.ErrRangeMismatch), value)
	}
}

func TestCopyRange(t *testing.T) {
	r := ChunkRange{Index: 1, Start: 100, End: 199}
	tests := []struct {
		name    string
		body    []byte
		wantN   int64
		wantErr error
	}{
		{"exact", sampleData(100), 100, nil},
		{"short", sampleData(60), 60, utils.ErrLengthMismatch},
		{"one byte extra", sampleData(101), 100, utils.ErrLengthMismatch},
		{"empty", nil, 0, utils.ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n, err := copyRange(&buf, bytes.NewReader(tt.body), r)
			assert.Equal(t, tt.wantN, n)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, buf.Bytes())
		})
	}
}
