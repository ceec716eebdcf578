package cluster

import (
	"fmt"
	"math"
	"strings"
)

// Scaling selects how each vocabulary row is normalised before distances are
// computed.
type Scaling int

const (
	// ZScore rescales a row to zero mean and unit (population) variance.
	ZScore Scaling = iota
	// MinMax rescales a row onto [0, 1] by subtracting its minimum and
	// dividing by its range.
	MinMax
	// Raw leaves counts untouched.
	Raw
)

func (s Scaling) String() string {
	switch s {
	case ZScore:
		return "zscore"
	case MinMax:
		return "minmax"
	case Raw:
		return "none"
	default:
		return fmt.Sprintf("Scaling(%d)", int(s))
	}
}

// ParseScaling maps a config value to a Scaling. The empty string is ZScore.
func ParseScaling(s string) (Scaling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zscore", "z", "standard":
		return ZScore, nil
	case "minmax", "min-max", "range":
		return MinMax, nil
	case "none", "raw":
		return Raw, nil
	}
	return 0, fmt.Errorf("unknown scaling %q", s)
}

// Apply returns a scaled copy of rows. The input is not modified.
func (s Scaling) Apply(rows [][]float64) [][]float64 {
	switch s {
	case MinMax:
		return MinMaxScale(rows)
	case Raw:
		return copyRows(rows)
	default:
		return Standardize(rows)
	}
}

// Standardize returns a copy of rows with each row shifted to mean 0 and
// divided by its population standard deviation. Rows with zero variance carry
// no information about how transcripts differ and become all zeros.
func Standardize(rows [][]float64) [][]float64 {
	out := copyRows(rows)
	for _, row := range out {
		if len(row) == 0 {
			continue
		}
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(len(row))
		var ss float64
		for _, v := range row {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / float64(len(row)))
		for j, v := range row {
			if std == 0 {
				row[j] = 0
				continue
			}
			row[j] = (v - mean) / std
		}
	}
	return out
}

// MinMaxScale returns a copy of rows with each row mapped onto [0, 1].
// Constant rows become all zeros.
func MinMaxScale(rows [][]float64) [][]float64 {
	out := copyRows(rows)
	for _, row := range out {
		if len(row) == 0 {
			continue
		}
		lo, hi := row[0], row[0]
		for _, v := range row[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		for j, v := range row {
			if hi == lo {
				row[j] = 0
				continue
			}
			row[j] = (v - lo) / (hi - lo)
		}
	}
	return out
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
