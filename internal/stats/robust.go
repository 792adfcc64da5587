package stats

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// WeightedMean calculates the weighted mean
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sumWeighted, sumWeights float64
	for i, v := range values {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		sumWeighted += v * w
		sumWeights += w
	}

	if sumWeights == 0 {
		return Mean(values)
	}

	return sumWeighted / sumWeights
}

// WeightedVariance calculates the weighted variance about the weighted mean
func WeightedVariance(values, weights []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := WeightedMean(values, weights)
	var sumWeightedSquaredDiff, sumWeights float64

	for i, v := range values {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		diff := v - mean
		sumWeightedSquaredDiff += w * diff * diff
		sumWeights += w
	}

	if sumWeights == 0 {
		return 0
	}

	return sumWeightedSquaredDiff / sumWeights
}

// Median calculates the median value
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Create a copy to avoid modifying the original slice
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// MAD calculates the median absolute deviation
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	median := Median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}

	return Median(deviations)
}
