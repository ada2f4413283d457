package primitive

import (
	"fmt"
	"math"
	"sort"
)

// A Reduction combines the values that several primitives staged for the same
// property of the same actuator into the single value that gets applied.
//
// The manager never calls a Reduction with an empty slice. Values arrive in
// the registration order of the primitives that staged them. The slice must
// not be retained.
type Reduction func(values []float64) float64

// Mean returns the arithmetic mean. It is the default reduction.
func Mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// Median returns the middle value, or the mean of the two middle values.
func Median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}

	return (sorted[mid-1] + sorted[mid]) / 2
}

// Max returns the largest value.
func Max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}

	return m
}

// Min returns the smallest value.
func Min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}

	return m
}

// Last returns the value of the most recently registered primitive. Unlike the
// other reductions it depends on registration order.
func Last(values []float64) float64 {
	return values[len(values)-1]
}

// ReductionByName looks up one of the provided reductions.
func ReductionByName(name string) (Reduction, error) {
	switch name {
	case "", "mean":
		return Mean, nil
	case "median":
		return Median, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	case "last":
		return Last, nil
	}

	return nil, fmt.Errorf("%w: unknown reduction %q", ErrInvalidConfig, name)
}

var reductionProbes = [][]float64{{1}, {1, 2}}

func checkReduction(r Reduction) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: reduction panics: %v", ErrInvalidConfig, rec)
		}
	}()

	for _, probe := range reductionProbes {
		if v := r(probe); math.IsNaN(v) {
			return fmt.Errorf("%w: reduction returns NaN for %v",
				ErrInvalidConfig, probe)
		}
	}

	return nil
}
