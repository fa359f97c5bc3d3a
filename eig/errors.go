package eig

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConverged is wrapped by *ConvergenceError.
	ErrNotConverged = errors.New("eig: newton iteration did not converge")
	// ErrNotImplemented reports an impedance without an s-scaled term.
	ErrNotImplemented = errors.New("eig: not implemented")
	// ErrTooFewModes reports fewer linearised candidates than requested.
	ErrTooFewModes = errors.New("eig: too few candidate modes")
)

// ConvergenceError reports a Newton refinement that hit its iteration cap.
type ConvergenceError struct {
	Iterations int
	Last       complex128 // last frequency estimate
	Delta      complex128 // last update
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("eig: no convergence after %d iterations, s=%v, last update %v",
		e.Iterations, e.Last, e.Delta)
}

func (e *ConvergenceError) Unwrap() error { return ErrNotConverged }
