package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussJacobi returns the n point Gauss rule for the weight
// (1-x)^alpha (1+x)^beta on [-1, 1]. Nodes are the eigenvalues of the
// symmetric Jacobi matrix of the monic recurrence; weight i is mu0 times the
// squared first component of eigenvector i.
func GaussJacobi(n int, alpha, beta float64) (x, w []float64, err error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("element: Gauss-Jacobi rule needs at least one point, got %d", n)
	}
	if alpha <= -1 || beta <= -1 {
		return nil, nil, fmt.Errorf("element: Jacobi exponents (%g, %g) must exceed -1", alpha, beta)
	}
	mu0 := Gamma0(alpha, beta)
	a, b := jacobiRecurrence(n, alpha, beta)
	if n == 1 {
		return []float64{a[0]}, []float64{mu0}, nil
	}

	// band storage, one super diagonal: row i holds (a_i, b_{i+1})
	band := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		band[2*i] = a[i]
		if i < n-1 {
			band[2*i+1] = b[i]
		}
	}
	var es mat.EigenSym
	if !es.Factorize(mat.NewSymBandDense(n, 1, band), true) {
		return nil, nil, fmt.Errorf("element: Jacobi matrix of order %d did not diagonalise", n)
	}
	x = es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	w = make([]float64, n)
	for i := range w {
		v0 := vecs.At(0, i)
		w[i] = mu0 * v0 * v0
	}
	return x, w, nil
}

// jacobiRecurrence returns the diagonal a_0..a_{n-1} and off diagonal
// sqrt(b_1)..sqrt(b_{n-1}) of the Jacobi matrix for P^(alpha,beta).
func jacobiRecurrence(n int, alpha, beta float64) (a, b []float64) {
	a = make([]float64, n)
	b = make([]float64, n-1)
	ab := alpha + beta
	a[0] = (beta - alpha) / (ab + 2)
	for k := 1; k < n; k++ {
		fk := float64(k)
		t := 2*fk + ab
		a[k] = (beta*beta - alpha*alpha) / (t * (t + 2))
		if k == 1 {
			// (1 + alpha + beta) cancels, which keeps alpha+beta = -1 finite
			b[0] = math.Sqrt(4 * (1 + alpha) * (1 + beta) / (t * t * (t + 1)))
			continue
		}
		num := 4 * fk * (fk + alpha) * (fk + beta) * (fk + ab)
		b[k-1] = math.Sqrt(num / (t * t * (t + 1) * (t - 1)))
	}
	return a, b
}

// Gamma0 is the integral of the Jacobi weight over [-1,1].
func Gamma0(alpha, beta float64) float64 {
	lg := func(x float64) float64 {
		v, _ := math.Lgamma(x)
		return v
	}
	return math.Exp((alpha+beta+1)*math.Ln2 + lg(alpha+1) + lg(beta+1) - lg(alpha+beta+2))
}
