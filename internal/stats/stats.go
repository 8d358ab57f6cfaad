// Package stats provides the pure aggregations behind exam reports:
// descriptive statistics, histogram binning and item analysis.
package stats

import (
	"math"
	"sort"

	"github.com/agep/exam-backend/internal/grading"
)

// DefaultBins is the histogram bin count used by reports.
const DefaultBins = 8

// Summary is the descriptive statistics of a value sequence.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
}

// Describe returns the summary of values. The standard deviation is the
// population one. An empty input yields the zero Summary.
func Describe(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return Summary{
		N:      n,
		Mean:   mean,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Std:    math.Sqrt(sq / float64(n)),
		Median: median,
	}
}

// Range is one histogram bin, [Low, High].
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Histogram distributes values across bins equal-width buckets between the
// minimum and the maximum. When every value is equal a single bin holds them
// all. bins <= 0 falls back to DefaultBins.
func Histogram(values []float64, bins int) ([]Range, []int) {
	if len(values) == 0 {
		return []Range{}, []int{}
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if lo == hi {
		return []Range{{Low: lo, High: hi}}, []int{len(values)}
	}

	width := (hi - lo) / float64(bins)
	ranges := make([]Range, bins)
	for i := range ranges {
		ranges[i] = Range{Low: lo + float64(i)*width, High: lo + float64(i+1)*width}
	}
	ranges[bins-1].High = hi

	counts := make([]int, bins)
	for _, v := range values {
		idx := int(math.Floor((v - lo) / width))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	return ranges, counts
}

// ItemTally is the correctness breakdown of one question across attempts.
type ItemTally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Blank     int `json:"blank"`
}

// CorrectPercent is the share of participants that answered correctly, on
// a 0..100 scale. participants is floored at 1.
func (t ItemTally) CorrectPercent(participants int) float64 {
	if participants < 1 {
		participants = 1
	}
	return float64(t.Correct) / float64(participants) * 100
}

// ItemAnalysis tallies every sheet against answerKey by question position.
// A missing entry in a sheet counts as blank.
func ItemAnalysis(answerKey []string, sheets []map[int]string) []ItemTally {
	tallies := make([]ItemTally, len(answerKey))
	for _, sheet := range sheets {
		for i, key := range answerKey {
			switch grading.Classify(sheet[i], key) {
			case grading.Correct:
				tallies[i].Correct++
			case grading.Incorrect:
				tallies[i].Incorrect++
			default:
				tallies[i].Blank++
			}
		}
	}
	return tallies
}
