package element

// Rule is a quadrature rule on the reference triangle.
//
// Points are the barycentric coordinates (xi, eta) attached to vertices 1 and
// 2 of a triangle; vertex 0 carries 1-xi-eta. Weights sum to one, so the
// integral of f over a physical triangle of area A is A * Σ w_i f(p_i).
type Rule interface {
	Points() [][2]float64
	Weights() []float64
}

// Barycentric maps rule point p onto the triangle (v0, v1, v2) and returns
// the three vertex weights.
func Barycentric(p [2]float64) (l0, l1, l2 float64) {
	return 1 - p[0] - p[1], p[0], p[1]
}
