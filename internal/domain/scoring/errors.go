package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidWeights is returned when factor weights break the (0,1] range or do not sum to 1.
var ErrInvalidWeights = errors.New("invalid factor weights")

func invalidWeight(k FactorKind, v float64) error {
	return fmt.Errorf("%w: %s weight %v outside (0,1]", ErrInvalidWeights, k, v)
}

func invalidSum(sum float64) error {
	return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
}
