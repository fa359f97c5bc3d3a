package operator

import "errors"

var (
	// ErrNotImplemented marks formulation and part combinations that are not supported.
	ErrNotImplemented = errors.New("operator: not implemented")
	// ErrInvalidComputation reports a NaN in an assembled matrix.
	ErrInvalidComputation = errors.New("operator: invalid computation")
	// ErrValidation reports parts that do not satisfy an operator's preconditions.
	ErrValidation = errors.New("operator: validation failed")
)
