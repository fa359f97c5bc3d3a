package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NNLS solves min ||a x - b|| subject to x >= 0 with the Lawson-Hanson
// active set method. It returns the solution and the residual norm.
func NNLS(a *mat.Dense, b []float64) ([]float64, float64, error) {
	m, n := a.Dims()
	if len(b) != m {
		return nil, 0, fmt.Errorf("%w: NNLS rhs has %d entries, want %d", ErrShape, len(b), m)
	}
	bv := mat.NewVecDense(m, b)
	x := make([]float64, n)
	passive := make([]bool, n)
	w := make([]float64, n)

	tol := 10 * (math.Nextafter(1, 2) - 1) * mat.Norm(a, 1) * float64(max(m, n))
	gradient := func() {
		var r mat.VecDense
		r.MulVec(a, mat.NewVecDense(n, x))
		r.SubVec(bv, &r)
		var g mat.VecDense
		g.MulVec(a.T(), &r)
		for j := range w {
			w[j] = g.AtVec(j)
		}
	}

	maxIter := 3 * n
	for iter := 0; ; iter++ {
		gradient()
		j, best := -1, tol
		for k := 0; k < n; k++ {
			if !passive[k] && w[k] > best {
				j, best = k, w[k]
			}
		}
		if j < 0 {
			break
		}
		if iter >= maxIter {
			return x, residual(a, x, b), ErrNoConverg
		}
		passive[j] = true

		for {
			z, err := passiveSolve(a, bv, passive)
			if err != nil {
				return x, residual(a, x, b), err
			}
			alpha := math.Inf(1)
			for k := 0; k < n; k++ {
				if passive[k] && z[k] <= 0 {
					if d := x[k] - z[k]; d > 0 {
						alpha = math.Min(alpha, x[k]/d)
					} else {
						alpha = 0
					}
				}
			}
			if math.IsInf(alpha, 1) {
				copy(x, z)
				break
			}
			for k := 0; k < n; k++ {
				x[k] += alpha * (z[k] - x[k])
				if passive[k] && x[k] <= tol {
					passive[k] = false
					x[k] = 0
				}
			}
		}
	}
	return x, residual(a, x, b), nil
}

// passiveSolve returns the least squares solution restricted to the passive
// columns, zero elsewhere.
func passiveSolve(a *mat.Dense, b *mat.VecDense, passive []bool) ([]float64, error) {
	m, n := a.Dims()
	var cols []int
	for k, p := range passive {
		if p {
			cols = append(cols, k)
		}
	}
	sub := mat.NewDense(m, len(cols), nil)
	for c, k := range cols {
		for i := 0; i < m; i++ {
			sub.Set(i, c, a.At(i, k))
		}
	}
	var zp mat.VecDense
	if err := acceptCondition(zp.SolveVec(sub, b)); err != nil {
		return nil, err
	}
	z := make([]float64, n)
	for c, k := range cols {
		z[k] = zp.AtVec(c)
	}
	return z, nil
}

func residual(a *mat.Dense, x, b []float64) float64 {
	m, n := a.Dims()
	var r mat.VecDense
	r.MulVec(a, mat.NewVecDense(n, x))
	res := make([]float64, m)
	for i := range res {
		res[i] = b[i] - r.AtVec(i)
	}
	return floats.Norm(res, 2)
}
