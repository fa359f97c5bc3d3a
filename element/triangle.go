package element

import (
	"fmt"

	"gonum.org/v1/gonum/integrate/quad"
)

// TriangleRule is a collapsed (Stroud) product rule on the reference
// triangle: Gauss-Legendre points in the collapsed direction a and
// Gauss-Jacobi(1,0) points in b. With n points per direction it integrates
// polynomials of total degree 2n-1 exactly.
type TriangleRule struct {
	order   int
	points  [][2]float64
	weights []float64
}

// NewTriangleRule builds the n x n point collapsed rule.
func NewTriangleRule(n int) (*TriangleRule, error) {
	if n < 1 {
		return nil, fmt.Errorf("element: triangle rule needs at least one point per direction, got %d", n)
	}
	a, wa, err := GaussJacobi(n, 0, 0)
	if err != nil {
		return nil, err
	}
	b, wb, err := GaussJacobi(n, 1, 0)
	if err != nil {
		return nil, err
	}
	tr := &TriangleRule{
		order:   n,
		points:  make([][2]float64, 0, n*n),
		weights: make([]float64, 0, n*n),
	}
	for i := range a {
		for j := range b {
			// (a,b) on the square -> (r,s) on the biunit triangle -> barycentric
			r := (1+a[i])*(1-b[j])/2 - 1
			s := b[j]
			tr.points = append(tr.points, [2]float64{(1 + r) / 2, (1 + s) / 2})
			tr.weights = append(tr.weights, wa[i]*wb[j]/4)
		}
	}
	return tr, nil
}

func (tr *TriangleRule) Points() [][2]float64 { return tr.points }
func (tr *TriangleRule) Weights() []float64   { return tr.weights }
func (tr *TriangleRule) Order() int           { return tr.order }

// LineRule returns n Gauss-Legendre points and weights on [min, max].
func LineRule(n int, min, max float64) (x, w []float64) {
	x = make([]float64, n)
	w = make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, min, max)
	return x, w
}
