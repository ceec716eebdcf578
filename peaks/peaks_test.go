package peaks

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/transcript"
)

func TestPercentile(t *testing.T) {
	assert.InDelta(t, 3.8, Percentile([]float64{1, 2, 5, 2, 1}, 90), 1e-9)
	assert.InDelta(t, 2, Percentile([]float64{1, 2, 5, 2, 1}, 50), 1e-9)
	assert.Equal(t, 7.0, Percentile([]float64{7}, 90))
	assert.True(t, math.IsNaN(Percentile(nil, 90)))
}

func TestThreshold(t *testing.T) {
	assert.InDelta(t, 1.2, Threshold([]float64{1, 2, 5, 2, 1}), 1e-9)
	assert.Equal(t, 0.0, Threshold([]float64{3, 3, 3, 3}))
	assert.Equal(t, 0.0, Threshold(nil))
}

func TestDetectUnimodal(t *testing.T) {
	series := []float64{1, 2, 5, 2, 1}
	assert.Equal(t, []int{2}, Detect(series))
	// any threshold below 5 - median keeps the single peak
	assert.Equal(t, []int{2}, DetectWithThreshold(series, 5-2-0.5))
	assert.Empty(t, DetectWithThreshold(series, 4.5))
}

func TestDetectFlatSeriesHasNoPeaks(t *testing.T) {
	assert.Empty(t, Detect([]float64{3, 3, 3, 3}))
	assert.Empty(t, DetectWithThreshold([]float64{3, 3, 3, 3}, 0))
}

func TestDetectDegenerate(t *testing.T) {
	assert.Empty(t, Detect(nil))
	assert.Empty(t, Detect([]float64{}))
	assert.Empty(t, Detect([]float64{42}))
}

func TestDetectFiltersLowProminence(t *testing.T) {
	// big spike at 5, small bump at 1
	series := []float64{0, 1, 0, 0, 0, 10, 0, 0, 0, 0}
	assert.Equal(t, []int{5}, Detect(series))
	assert.Equal(t, []int{1, 5}, DetectWithThreshold(series, 0.5))
}

func TestDetectBoundaryAndPlateau(t *testing.T) {
	// boundary maximum on the left
	assert.Equal(t, []int{0}, DetectWithThreshold([]float64{9, 1, 2, 1}, 5))
	// plateau of width 3 reported at its middle
	assert.Equal(t, []int{3}, DetectWithThreshold([]float64{0, 1, 4, 4, 4, 1, 0}, 1))
	// a plateau rising into a higher point is not a peak; the boundary maximum is
	assert.Equal(t, []int{3}, DetectWithThreshold([]float64{0, 4, 4, 5}, 0))
}

func TestProminenceUsesHigherBase(t *testing.T) {
	// peak at 3 (value 6): left walk reaches 8 after min 1, right walk reaches the end with min 4
	series := []float64{8, 1, 3, 6, 4, 5}
	assert.Equal(t, 2.0, Prominence(series, 3, 3))
	// walking stops at an equal value, so the left base is 3 rather than 0
	assert.Equal(t, 2.0, Prominence([]float64{0, 5, 3, 5, 1}, 3, 3))
}

func TestAnnotate(t *testing.T) {
	counts := []int{1, 2, 5, 2, 1}
	var rows []activity.TimeBucket
	// interleave two transcripts, second one flat; insert out of order
	for i := len(counts) - 1; i >= 0; i-- {
		start := transcript.Timestamp(time.Duration(i) * time.Minute)
		rows = append(rows,
			activity.TimeBucket{Start: start, Label: activity.TotalLabel, Transcript: "a", Count: counts[i]},
			activity.TimeBucket{Start: start, Label: activity.TotalLabel, Transcript: "b", Count: 3},
		)
	}
	rows[0].IsPeak = true // stale flag is cleared
	n := Annotate(rows)
	require.Equal(t, 1, n)
	for _, r := range rows {
		want := r.Transcript == "a" && r.Start == transcript.Timestamp(2*time.Minute)
		assert.Equal(t, want, r.IsPeak, "%s %s", r.Transcript, r.Start)
	}
	assert.Zero(t, Annotate(nil))
}
