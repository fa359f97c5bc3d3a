package eig

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
)

// Estimate is a linearised pole and current.
type Estimate struct {
	S complex128
	J []complex128
}

// Linearised freezes the material weights of d at its frequency s0 and
// solves s^2 L + s K + S = 0, where L, K and S collect the terms of power
// +1, 0 and -1. Roots with |s| < staticTol |s0| and roots with
// Im s <= staticTol |s0| are discarded; the rest are ordered by ascending
// |Im s| and the first n are returned with real normalised currents.
func Linearised(d *impedance.Decomposition, n int, staticTol float64) ([]Estimate, error) {
	l := d.Collect(1)
	if l == nil {
		return nil, fmt.Errorf("%w: impedance has no s-scaled term", ErrNotImplemented)
	}
	size, _ := l.Dims()
	ref := cmplx.Abs(d.S)
	if ref == 0 {
		ref = 1
	}
	// s = ref σ:  σ^2 (ref L) + σ K + S/ref = 0
	lu, err := linalg.Factorize(linalg.Scale(complex(ref, 0), l))
	if err != nil {
		return nil, err
	}
	rhs := mat.NewCDense(size, 2*size, nil)
	if s := d.Collect(-1); s != nil {
		linalg.AddScaled(rhs, 0, 0, complex(1/ref, 0), s)
	}
	if k := d.Collect(0); k != nil {
		linalg.AddScaled(rhs, 0, size, 1, k)
	}
	x, err := lu.Solve(rhs)
	if err != nil {
		return nil, err
	}
	a := mat.NewCDense(2*size, 2*size, nil)
	for i := 0; i < size; i++ {
		a.Set(i, size+i, 1)
	}
	linalg.AddScaled(a, size, 0, -1, x)

	sigma, vecs, err := linalg.Eig(a)
	if err != nil {
		return nil, err
	}
	var keep []int
	for i, v := range sigma {
		if cmplx.Abs(v) < staticTol || imag(v) <= staticTol {
			continue
		}
		keep = append(keep, i)
	}
	sort.SliceStable(keep, func(a, b int) bool {
		return math.Abs(imag(sigma[keep[a]])) < math.Abs(imag(sigma[keep[b]]))
	})
	if len(keep) < n {
		return nil, fmt.Errorf("%w: %d candidates, %d requested", ErrTooFewModes, len(keep), n)
	}
	out := make([]Estimate, n)
	for k, i := range keep[:n] {
		j := linalg.Column(vecs, i)[:size]
		out[k] = Estimate{S: complex(ref, 0) * sigma[i], J: linalg.RealNormalise(j)}
	}
	return out, nil
}

// ImpedanceModes returns the eigenvalues and eigenvectors of an assembled
// impedance matrix ordered by ascending |Im λ|, keeping the first n (all
// when n <= 0).
func ImpedanceModes(z *mat.CDense, n int) ([]complex128, *mat.CDense, error) {
	vals, vecs, err := linalg.Eig(z)
	if err != nil {
		return nil, nil, err
	}
	order := make([]int, len(vals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(imag(vals[order[a]])) < math.Abs(imag(vals[order[b]]))
	})
	if n <= 0 || n > len(vals) {
		n = len(vals)
	}
	outVals := make([]complex128, n)
	cols := make([][]complex128, n)
	for k, i := range order[:n] {
		outVals[k] = vals[i]
		cols[k] = linalg.Column(vecs, i)
	}
	return outVals, linalg.FromColumns(cols), nil
}
