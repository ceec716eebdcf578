package cluster

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/chat-tender/backend/vocab"
)

func TestStandardize(t *testing.T) {
	in := [][]float64{{1, 2, 3}, {4, 4, 4}}
	out := Standardize(in)
	s := math.Sqrt(1.5)
	assert.InDeltaSlice(t, []float64{-s, 0, s}, out[0], 1e-9)
	assert.Equal(t, []float64{0, 0, 0}, out[1])
	assert.Equal(t, []float64{1, 2, 3}, in[0], "input is not modified")
}

func TestMinMaxScale(t *testing.T) {
	out := MinMaxScale([][]float64{{2, 4, 6}, {7, 7}})
	assert.Equal(t, []float64{0, 0.5, 1}, out[0])
	assert.Equal(t, []float64{0, 0}, out[1])
}

func TestParseScaling(t *testing.T) {
	for in, want := range map[string]Scaling{"": ZScore, "ZScore": ZScore, "minmax": MinMax, "none": Raw} {
		got, err := ParseScaling(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseScaling("log")
	assert.Error(t, err)
}

func TestDistances(t *testing.T) {
	d, err := Distances([][]float64{{0, 3, 0}, {0, 4, 1}}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 5.0, d.At(0, 1))
	assert.Equal(t, 5.0, d.At(1, 0))
	assert.Equal(t, 1.0, d.At(0, 2))
	assert.InDelta(t, math.Sqrt(18), d.At(1, 2), 1e-9)
	assert.Zero(t, d.At(2, 2))

	_, err = Distances([][]float64{{1, 2}}, 3)
	assert.ErrorIs(t, err, ErrShape)
}

func TestWardLinkage(t *testing.T) {
	// one vocabulary row: A=0 B=1 C=5 D=6
	res, err := Ward([]string{"A", "B", "C", "D"}, [][]float64{{0, 1, 5, 6}})
	require.NoError(t, err)
	require.Len(t, res.Merges, 3)

	// AB and CD tie at 1; the lower pair merges first
	assert.Equal(t, Merge{Left: 0, Right: 1, Distance: 1, Size: 2}, res.Merges[0])
	assert.Equal(t, Merge{Left: 2, Right: 3, Distance: 1, Size: 2}, res.Merges[1])
	last := res.Merges[2]
	assert.Equal(t, 4, last.Left)
	assert.Equal(t, 5, last.Right)
	assert.Equal(t, 4, last.Size)
	// Ward distance of two pairs: sqrt(2*|a||b|/(|a|+|b|)) * |centroid gap|
	assert.InDelta(t, math.Sqrt(50), last.Distance, 1e-9)

	assert.Equal(t, []string{"A", "B", "C", "D"}, res.Order)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Leaves)
}

func TestCut(t *testing.T) {
	res, err := Ward([]string{"A", "B", "C", "D"}, [][]float64{{0, 1, 5, 6}})
	require.NoError(t, err)

	labels, err := res.Cut(2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, labels)

	labels, err = res.Cut(1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1}, labels)

	labels, err = res.Cut(4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, labels)

	_, err = res.Cut(0)
	assert.Error(t, err)
	_, err = res.Cut(5)
	assert.Error(t, err)
}

func TestIdenticalProfilesAreAdjacent(t *testing.T) {
	m := &vocab.Matrix{
		Words:       []string{"KEKW", "Pog", "Sadge"},
		Transcripts: []string{"A", "B", "C"},
		Counts: [][]float64{
			{1, 5, 1},
			{0, 5, 0},
			{3, 9, 3},
		},
	}
	res, err := Cluster(context.Background(), m, ZScore)
	require.NoError(t, err)
	require.Len(t, res.Merges, 2)
	assert.Equal(t, Merge{Left: 0, Right: 2, Distance: 0, Size: 2}, res.Merges[0])
	assert.Equal(t, []string{"B", "A", "C"}, res.Order)
	assert.Equal(t, []string{"KEKW", "Pog", "Sadge"}, m.Words, "rows are never reordered")
}

func TestClusterDegenerate(t *testing.T) {
	res, err := Cluster(context.Background(), &vocab.Matrix{}, ZScore)
	require.NoError(t, err)
	assert.Empty(t, res.Order)
	assert.Empty(t, res.Merges)

	res, err = Cluster(context.Background(), &vocab.Matrix{
		Words: []string{"w"}, Transcripts: []string{"solo"}, Counts: [][]float64{{12}},
	}, ZScore)
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, res.Order)
	assert.Empty(t, res.Merges)
	labels, err := res.Cut(1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, labels)

	// a matrix with transcripts but no surviving words clusters at distance 0
	res, err = Cluster(context.Background(), &vocab.Matrix{Transcripts: []string{"a", "b"}}, ZScore)
	require.NoError(t, err)
	require.Len(t, res.Merges, 1)
	assert.Zero(t, res.Merges[0].Distance)
}

func TestLinkageHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, err := Distances([][]float64{{0, 1}}, 2)
	require.NoError(t, err)
	_, err = Linkage(ctx, []string{"a", "b"}, d)
	assert.ErrorIs(t, err, context.Canceled)
}
