package operator

import (
	"math"
	"math/cmplx"
)

const fourPi = 4 * math.Pi

// green returns G = exp(-gR)/(4 pi R) and dG/dg.
func green(g complex128, r float64) (complex128, complex128) {
	e := cmplx.Exp(-g * complex(r, 0))
	return e / complex(fourPi*r, 0), -e / fourPi
}

// gradGreen returns the scalar f with grad G = (r - r') f, where
// f = -(1 + gR) exp(-gR) / (4 pi R^3).
func gradGreen(g complex128, r float64) complex128 {
	gr := g * complex(r, 0)
	return -(1 + gr) * cmplx.Exp(-gr) / complex(fourPi*r*r*r, 0)
}

// extracted reports whether series term k of exp(-gR)/R is integrated
// analytically when n singular terms are removed: k = 0, 2, ..., 2(n-1).
func extracted(k, n int) bool {
	return k%2 == 0 && k < 2*n
}

// remainder returns G minus its first n extracted terms
// g^{2t} R^{2t-1} / ((2t)! 4 pi), together with the g derivative of that
// remainder. Small arguments use the power series so that R = 0 is safe.
func remainder(g complex128, r float64, n int) (complex128, complex128) {
	x := g * complex(r, 0)
	if n == 0 {
		if r == 0 {
			return cmplx.Inf(), cmplx.Inf()
		}
		return green(g, r)
	}
	if cmplx.Abs(x) < 1 {
		// term k: (-g)^k R^(k-1) / k!,  d/dg: -(-gR)^(k-1) / (k-1)!
		var sum, dsum complex128
		term := -g              // k = 1
		dterm := complex128(-1) // k = 1
		for k := 1; k < 40; k++ {
			if !extracted(k, n) {
				sum += term
				dsum += dterm
				if k > 2*n && cmplx.Abs(term) <= 1e-17*cmplx.Abs(sum) {
					break
				}
			}
			dterm = -term * complex(r, 0) // -(-gR)^k / k! = -R * term_k
			term *= -x / complex(float64(k+1), 0)
		}
		return sum / fourPi, dsum / fourPi
	}
	e := cmplx.Exp(-x)
	v := e / complex(r, 0)
	dv := -e
	pow := complex128(1) // g^(2t-1) R^(2t-1) / (2t-1)! accumulator
	even := complex(1/r, 0)
	for t := 0; t < n; t++ {
		if t > 0 {
			even *= x * x / complex(float64((2*t)*(2*t-1)), 0)
			if t == 1 {
				pow = x
			} else {
				pow *= x * x / complex(float64((2*t-1)*(2*t-2)), 0)
			}
			dv -= pow
		}
		v -= even
	}
	return v / fourPi, dv / fourPi
}

// extractedCoefficient is the factor multiplying the geometric integral of
// R^(2t-1) for extracted term t, and its g derivative.
func extractedCoefficient(g complex128, t int) (complex128, complex128) {
	c := complex128(1)
	for k := 1; k <= 2*t; k++ {
		c *= g / complex(float64(k), 0)
	}
	// c = g^{2t}/(2t)!;  dc/dg = g^{2t-1}/(2t-1)! = c * 2t / g
	var dc complex128
	if t > 0 {
		dc = c * complex(float64(2*t), 0) / g
	}
	return c / fourPi, dc / fourPi
}
