package count

import (
	"errors"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/sketchlib/streamsketch/internal"
)

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// SuggestWidth returns the smallest power-of-two width whose expected
// relative error does not exceed relativeError.
func SuggestWidth(relativeError float64) (int, error) {
	if relativeError <= 0 {
		return 0, errors.New("relative error must be greater than 0.0")
	}
	return internal.CeilPowerOf2(int(math.Ceil(1.0 / relativeError))), nil
}

// SuggestDepth returns the smallest odd number of rows for which the median
// estimator fails with probability at most 1-confidence.
func SuggestDepth(confidence float64) (int, error) {
	if confidence < 0 || confidence >= 1.0 {
		return 0, errors.New("confidence must be between 0 (inclusive) and 1.0 (exclusive)")
	}
	depth := Min(int(math.Ceil(math.Log(1.0/(1.0-confidence)))), 61)
	if depth < 1 {
		depth = 1
	}
	if depth&1 == 0 {
		depth++
	}
	return depth, nil
}
