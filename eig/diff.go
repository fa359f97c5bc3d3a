package eig

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/linalg"
)

// ImpedanceFunc evaluates an impedance matrix at a complex frequency.
type ImpedanceFunc func(s complex128) (*mat.CDense, error)

var epsilon = math.Nextafter(1, 2) - 1

// StepSize is the central difference step at s: |s| eps^(1/3) (1+i), rounded
// so that s+h is exactly representable.
func StepSize(s complex128) complex128 {
	h := complex(cmplx.Abs(s)*math.Cbrt(epsilon), 0) * complex(1, 1)
	return roundStep(s, h)
}

// roundStep returns (s+h)-s. The sum is stored first so the difference is
// exact in floating point.
func roundStep(s, h complex128) complex128 {
	t := s + h
	return t - s
}

// CentralDifference estimates dZ/ds at s.
func CentralDifference(z ImpedanceFunc, s complex128) (*mat.CDense, error) {
	return differenceStep(z, s, StepSize(s))
}

func differenceStep(z ImpedanceFunc, s, h complex128) (*mat.CDense, error) {
	up, err := z(s + h)
	if err != nil {
		return nil, err
	}
	down, err := z(s - h)
	if err != nil {
		return nil, err
	}
	r, c := up.Dims()
	dz := mat.NewCDense(r, c, nil)
	linalg.AddScaled(dz, 0, 0, 1/(2*h), up)
	linalg.AddScaled(dz, 0, 0, -1/(2*h), down)
	return dz, nil
}

// ProjectedDerivative is j^T dZ/ds j, unconjugated.
func ProjectedDerivative(z ImpedanceFunc, s complex128, j []complex128) (complex128, error) {
	dz, err := CentralDifference(z, s)
	if err != nil {
		return 0, err
	}
	return linalg.Bilinear(j, dz, j), nil
}
