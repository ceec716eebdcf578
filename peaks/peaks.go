// Package peaks flags locally prominent maxima in aggregated activity series.
//
// A peak must stand out from its surroundings by at least the series' own
// spread between its maximum and its 90th percentile, so quiet and busy
// streams are judged on their own scale.
package peaks

import (
	"math"
	"sort"

	"github.com/onnwee/chat-tender/backend/activity"
)

// ThresholdPercentile is the percentile subtracted from the series maximum to
// obtain the prominence threshold.
const ThresholdPercentile = 90

// Threshold returns max(series) - percentile90(series). An empty series has a
// threshold of 0.
func Threshold(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	max := series[0]
	for _, v := range series[1:] {
		if v > max {
			max = v
		}
	}
	return max - Percentile(series, ThresholdPercentile)
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	if p <= 0 {
		return s[0]
	}
	if p >= 100 {
		return s[len(s)-1]
	}
	pos := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	if lo+1 >= len(s) {
		return s[lo]
	}
	return s[lo] + (pos-float64(lo))*(s[lo+1]-s[lo])
}

// Detect returns the indices of prominent peaks using the adaptive threshold.
func Detect(series []float64) []int {
	return DetectWithThreshold(series, Threshold(series))
}

// DetectWithThreshold returns the indices of candidate maxima whose prominence
// is at least threshold. Candidates are points (or flat runs, reported at
// their middle index) whose neighbours are all lower; a point on the series
// boundary only needs its single neighbour to be lower. A prominence of zero
// never counts, so constant series have no peaks regardless of threshold.
func DetectWithThreshold(series []float64, threshold float64) []int {
	n := len(series)
	if n < 2 {
		return nil
	}
	var out []int
	for i := 0; i < n; {
		j := i
		for j+1 < n && series[j+1] == series[i] {
			j++
		}
		v := series[i]
		leftLower := i == 0 || series[i-1] < v
		rightLower := j == n-1 || series[j+1] < v
		if leftLower && rightLower && (i > 0 || j < n-1) {
			prom := Prominence(series, i, j)
			if prom > 0 && prom >= threshold {
				out = append(out, i+(j-i)/2)
			}
		}
		i = j + 1
	}
	return out
}

// Prominence returns the topographic prominence of the flat run series[i..j].
// Each side is walked outward until the boundary or a value >= the run's value;
// the lowest value seen is that side's base. A side with nothing to walk (the
// run touches the boundary) is ignored. The prominence is the run's value
// minus the higher of the bases.
func Prominence(series []float64, i, j int) float64 {
	v := series[i]
	base, found := math.Inf(-1), false
	if lo, ok := sideMin(series, i-1, -1, v); ok {
		base, found = lo, true
	}
	if lo, ok := sideMin(series, j+1, 1, v); ok {
		found = true
		if lo > base {
			base = lo
		}
	}
	if !found {
		return 0
	}
	return v - base
}

func sideMin(series []float64, k, step int, v float64) (float64, bool) {
	min, walked := math.Inf(1), false
	for ; k >= 0 && k < len(series) && series[k] < v; k += step {
		if series[k] < min {
			min = series[k]
		}
		walked = true
	}
	return min, walked
}

// Annotate sets IsPeak on rows that are prominent peaks of their
// (transcript, label) series and returns the number of rows flagged. Each
// series is ordered by bucket start before detection; rows themselves are not
// reordered.
func Annotate(rows []activity.TimeBucket) int {
	type key struct{ transcript, label string }
	groups := map[key][]int{}
	var keys []key
	for i, r := range rows {
		k := key{r.Transcript, r.Label}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}
	flagged := 0
	for _, k := range keys {
		idx := groups[k]
		sort.SliceStable(idx, func(a, b int) bool { return rows[idx[a]].Start < rows[idx[b]].Start })
		series := make([]float64, len(idx))
		for n, i := range idx {
			rows[i].IsPeak = false
			series[n] = float64(rows[i].Count)
		}
		for _, p := range Detect(series) {
			rows[idx[p]].IsPeak = true
			flagged++
		}
	}
	return flagged
}
