package linalg

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"
)

// Eig computes the eigenvalues and right eigenvectors of a complex square
// matrix. Vectors are returned as unit 2-norm columns, in the order LAPACK
// produced their eigenvalues.
//
// The decomposition runs on the real embedding E of a. Each eigenpair
// (l, v) of a appears in E as (l, [v; -iv]); the companion (conj(l),
// [conj(v); i conj(v)]) carries no information and is recognised by a
// vanishing top + i*bottom combination. Eigenvalues of a that are real
// produce a doubled eigenspace in E, which is reduced back to the correct
// dimension by orthogonalising within clusters of equal eigenvalues.
func Eig(a *mat.CDense) ([]complex128, *mat.CDense, error) {
	n, c := a.Dims()
	if n != c {
		return nil, nil, fmt.Errorf("%w: eigen decomposition of %dx%d matrix", ErrShape, n, c)
	}
	var e mat.Eigen
	if ok := e.Factorize(Embed(a), mat.EigenRight); !ok {
		return nil, nil, ErrEigen
	}
	values := e.Values(nil)
	var vecs mat.CDense
	e.VectorsTo(&vecs)

	var scale float64
	for _, v := range values {
		scale = math.Max(scale, cmplx.Abs(v))
	}
	clusterTol := 1e-8 * math.Max(scale, math.SmallestNonzeroFloat64)

	type pair struct {
		value complex128
		vec   []complex128
	}
	var accepted []pair
	for j := range values {
		v := make([]complex128, n)
		for i := 0; i < n; i++ {
			v[i] = vecs.At(i, j) + 1i*vecs.At(i+n, j)
		}
		// genuine vectors carry norm sqrt(2) (complex values) or 1 (real values)
		norm := cmplxs.Norm(v, 2)
		if norm < 0.5*cmplxs.Norm(Column(&vecs, j), 2) {
			continue
		}
		cmplxs.Scale(complex(1/norm, 0), v)
		for _, p := range accepted {
			if cmplx.Abs(p.value-values[j]) <= clusterTol {
				cmplxs.AddScaled(v, -cmplxs.Dot(p.vec, v), p.vec)
			}
		}
		norm = cmplxs.Norm(v, 2)
		if norm < 0.1 {
			continue
		}
		cmplxs.Scale(complex(1/norm, 0), v)
		accepted = append(accepted, pair{value: values[j], vec: v})
	}
	if len(accepted) != n {
		return nil, nil, fmt.Errorf("%w: recovered %d of %d eigenpairs", ErrEigen, len(accepted), n)
	}

	out := make([]complex128, n)
	cols := make([][]complex128, n)
	for j, p := range accepted {
		out[j] = p.value
		cols[j] = p.vec
	}
	return out, FromColumns(cols), nil
}
