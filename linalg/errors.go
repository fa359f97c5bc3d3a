package linalg

import "errors"

var (
	ErrShape     = errors.New("linalg: dimension mismatch")
	ErrSingular  = errors.New("linalg: matrix is singular")
	ErrEigen     = errors.New("linalg: eigen decomposition failed")
	ErrNoConverg = errors.New("linalg: iteration limit reached")
)
