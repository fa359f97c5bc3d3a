package operator

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/element"
	"github.com/notargets/gomodes/parts"
)

// geometry is a placed part prepared for integration.
type geometry struct {
	part    *parts.Part
	basis   *basis.Basis
	verts   [][3]r3.Vec
	centres []r3.Vec
	normals []r3.Vec
	areas   []float64
	points  [][]r3.Vec // quadrature points per triangle
	weights []float64  // rule weights, summing to one
	size    float64    // longest edge
}

func newGeometry(p *parts.Part, b *basis.Basis, rule element.Rule) *geometry {
	nodes := p.Nodes()
	m := p.Mesh
	g := &geometry{
		part:    p,
		basis:   b,
		verts:   make([][3]r3.Vec, len(m.Triangles)),
		centres: make([]r3.Vec, len(m.Triangles)),
		normals: p.Normals(),
		areas:   m.Areas,
		points:  make([][]r3.Vec, len(m.Triangles)),
		weights: rule.Weights(),
		size:    m.MaxEdgeLength(),
	}
	for t, tri := range m.Triangles {
		v := [3]r3.Vec{nodes[tri[0]], nodes[tri[1]], nodes[tri[2]]}
		g.verts[t] = v
		g.centres[t] = r3.Scale(1./3, r3.Add(r3.Add(v[0], v[1]), v[2]))
		g.points[t] = make([]r3.Vec, len(rule.Points()))
		for q, p := range rule.Points() {
			l0, l1, l2 := element.Barycentric(p)
			g.points[t][q] = r3.Add(r3.Add(r3.Scale(l0, v[0]), r3.Scale(l1, v[1])), r3.Scale(l2, v[2]))
		}
	}
	return g
}

// local returns the vertices of triangle t relative to its centre.
func (g *geometry) local(t int) [3]r3.Vec {
	c := g.centres[t]
	v := g.verts[t]
	return [3]r3.Vec{r3.Sub(v[0], c), r3.Sub(v[1], c), r3.Sub(v[2], c)}
}

// coplanar reports whether triangles m of a and n of b lie in one plane.
func coplanar(a *geometry, m int, b *geometry, n int) bool {
	tol := 1e-10
	if r3.Norm(r3.Cross(a.normals[m], b.normals[n])) > tol {
		return false
	}
	return math.Abs(r3.Dot(r3.Sub(b.centres[n], a.centres[m]), a.normals[m])) <= tol*math.Max(a.size, b.size)
}

// weightedPoint is a source point with an absolute integration weight.
type weightedPoint struct {
	p r3.Vec
	w float64
}

// duffy appends a polar integration rule for triangle v centred on the
// projection of r onto the triangle plane. x, w is a Gauss rule on [0,1].
// The weights integrate dS directly and absorb the radial Jacobian, which
// cancels the 1/R singularity when r lies in the plane.
func duffy(dst []weightedPoint, r r3.Vec, v [3]r3.Vec, normal r3.Vec, x, w []float64) []weightedPoint {
	h := r3.Dot(r3.Sub(r, v[0]), normal)
	rho := r3.Sub(r, r3.Scale(h, normal))
	for e := 0; e < 3; e++ {
		a, b := v[e], v[(e+1)%3]
		ea, eb := r3.Sub(a, rho), r3.Sub(b, rho)
		area2 := r3.Dot(r3.Cross(ea, eb), normal)
		if math.Abs(area2) < 1e-14*r3.Norm2(r3.Sub(b, a)) {
			continue
		}
		ab := r3.Sub(b, a)
		for i, u := range x {
			for j, t := range x {
				d := r3.Add(ea, r3.Scale(t, ab))
				dst = append(dst, weightedPoint{
					p: r3.Add(rho, r3.Scale(u, d)),
					w: w[i] * w[j] * u * area2,
				})
			}
		}
	}
	return dst
}
