package operator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/parts"
)

// EFIE is the electric field integral equation for perfect conductors,
//
//	Z(s) = s mu L + S / (s eps)
//
// where L and S are the vector and scalar potential blocks of the RWG basis.
type EFIE struct {
	*base
}

func NewEFIE(cfg Config) (*EFIE, error) {
	b, err := newBase("efie", cfg)
	if err != nil {
		return nil, err
	}
	return &EFIE{base: b}, nil
}

func (e *EFIE) Reciprocal() bool { return true }

func (e *EFIE) Info() Info {
	return Info{Name: "EFIE", Reciprocal: true, Unknowns: 1, Sources: []string{"E"}}
}

func (e *EFIE) ImpedanceSingleParts(s complex128, o, src *parts.Part, opts ...impedance.Option) (*impedance.Decomposition, error) {
	opt := impedance.Apply(opts...)
	for _, p := range []*parts.Part{o, src} {
		if p != nil && !material.IsPEC(p.Material) {
			return nil, fmt.Errorf("%w: part %q is not a perfect conductor", ErrValidation, p.Name)
		}
	}
	g, gs, self, err := e.pair(o, src)
	if err != nil {
		return nil, err
	}
	gamma := material.Wavenumber(e.bg, s)
	mu := complex(material.Mu0, 0) * e.bg.MuR(s)
	eps := complex(material.Eps0, 0) * e.bg.EpsilonR(s)

	blk := e.potentials(gamma, g, gs, self, opt.FrequencyDerivatives)
	d := &impedance.Decomposition{
		S:        s,
		Sections: 1,
		Rows:     g.basis.Len(),
		Cols:     gs.basis.Len(),
		Terms: []impedance.Term{
			{Name: "L", Power: 1, Weight: mu, Block: blk.l},
			{Name: "S", Power: -1, Weight: 1 / eps, Block: blk.s},
		},
	}
	if opt.FrequencyDerivatives {
		// the background is treated as non dispersive: dgamma/ds = n/c
		dg := material.RefractiveIndex(e.bg, s) / complex(material.C, 0)
		r, c := blk.l.Dims()
		dz := mat.NewCDense(r, c, nil)
		linalg.AddScaled(dz, 0, 0, mu, blk.l)
		linalg.AddScaled(dz, 0, 0, mu*s*dg, blk.dl)
		linalg.AddScaled(dz, 0, 0, -1/(eps*s*s), blk.s)
		linalg.AddScaled(dz, 0, 0, dg/(eps*s), blk.ds)
		d.Derivative = dz
	}
	for _, t := range d.Terms {
		if linalg.HasNaN(t.Block) {
			return nil, fmt.Errorf("%w: %s block of %q", ErrInvalidComputation, t.Name, g.part.Name)
		}
	}
	return d, nil
}

func (e *EFIE) SourceVector(src Source, s complex128, p *parts.Part) ([]complex128, error) {
	g, err := e.geometry(p)
	if err != nil {
		return nil, err
	}
	return testField(g, func(r r3.Vec) [3]complex128 {
		ef, _ := src.Fields(s, e.bg, r)
		return ef
	}, false), nil
}

// potentialBlocks are the geometric vector (l) and scalar (s) potential
// blocks and their derivatives with respect to gamma.
type potentialBlocks struct {
	l, s   *mat.CDense
	dl, ds *mat.CDense
}

// faceIntegrals are the potential integrals of one triangle pair:
// vec[k][l] = ∫∫ (r - v_k)·(r' - v_l) G and sca = ∫∫ G.
type faceIntegrals struct {
	vec, dvec [3][3]complex128
	sca, dsca complex128
}

func (b *base) potentials(gamma complex128, o, src *geometry, self, deriv bool) *potentialBlocks {
	no, ns := o.basis.Len(), src.basis.Len()
	pb := &potentialBlocks{l: mat.NewCDense(no, ns, nil), s: mat.NewCDense(no, ns, nil)}
	if deriv {
		pb.dl, pb.ds = mat.NewCDense(no, ns, nil), mat.NewCDense(no, ns, nil)
	}
	var table *singularTable
	if self {
		table = b.singular.get(o)
	}
	kernel := green
	rem := func(g complex128, r float64) (complex128, complex128) {
		return remainder(g, r, b.singular.terms)
	}
	for m := range o.verts {
		start := 0
		if self {
			start = m
		}
		for n := start; n < len(src.verts); n++ {
			var fi faceIntegrals
			if self {
				if terms, _, ok := table.lookup(m, n); ok {
					fi = regularPair(gamma, o, m, src, n, rem, deriv)
					addExtracted(&fi, gamma, terms)
				} else {
					fi = regularPair(gamma, o, m, src, n, kernel, deriv)
				}
			} else {
				fi = regularPair(gamma, o, m, src, n, kernel, deriv)
			}
			scatter(pb, o, m, src, n, &fi, false)
			if self && m != n {
				scatter(pb, o, n, src, m, &fi, true)
			}
		}
	}
	return pb
}

type cvec [3]complex128

func (c *cvec) add(k complex128, v r3.Vec) {
	c[0] += k * complex(v.X, 0)
	c[1] += k * complex(v.Y, 0)
	c[2] += k * complex(v.Z, 0)
}

func (c cvec) dot(v r3.Vec) complex128 {
	return c[0]*complex(v.X, 0) + c[1]*complex(v.Y, 0) + c[2]*complex(v.Z, 0)
}

// moments accumulates ∫∫ K, ∫∫ K r, ∫∫ K r' and ∫∫ K r·r' with r and r'
// relative to the triangle centres.
type moments struct {
	m0      complex128
	mr, mrp cvec
	mrr     complex128
}

func (mo *moments) add(k complex128, ro, rs r3.Vec) {
	mo.m0 += k
	mo.mr.add(k, ro)
	mo.mrp.add(k, rs)
	mo.mrr += k * complex(r3.Dot(ro, rs), 0)
}

func (mo *moments) vec(vo, vs [3]r3.Vec) [3][3]complex128 {
	var out [3][3]complex128
	for k := 0; k < 3; k++ {
		for l := 0; l < 3; l++ {
			out[k][l] = mo.mrr - mo.mr.dot(vs[l]) - mo.mrp.dot(vo[k]) +
				complex(r3.Dot(vo[k], vs[l]), 0)*mo.m0
		}
	}
	return out
}

// regularPair integrates kernel over triangles m of a and n of b with the
// product of the regular rules.
func regularPair(gamma complex128, a *geometry, m int, b *geometry, n int,
	kernel func(complex128, float64) (complex128, complex128), deriv bool) faceIntegrals {
	var mo, dmo moments
	cm, cn := a.centres[m], b.centres[n]
	dc := r3.Sub(cm, cn)
	for i, r := range a.points[m] {
		wi := a.weights[i] * a.areas[m]
		ro := r3.Sub(r, cm)
		for j, rp := range b.points[n] {
			w := complex(wi*b.weights[j]*b.areas[n], 0)
			rs := r3.Sub(rp, cn)
			g, dg := kernel(gamma, r3.Norm(r3.Add(r3.Sub(ro, rs), dc)))
			mo.add(w*g, ro, rs)
			if deriv {
				dmo.add(w*dg, ro, rs)
			}
		}
	}
	vo, vs := a.local(m), b.local(n)
	fi := faceIntegrals{vec: mo.vec(vo, vs), sca: mo.m0}
	if deriv {
		fi.dvec, fi.dsca = dmo.vec(vo, vs), dmo.m0
	}
	return fi
}

// addExtracted adds the analytically integrated series terms of a self pair.
func addExtracted(fi *faceIntegrals, gamma complex128, terms []singularTerm) {
	for t, st := range terms {
		c, dc := extractedCoefficient(gamma, t)
		fi.sca += c * complex(st.sca, 0)
		fi.dsca += dc * complex(st.sca, 0)
		for k := 0; k < 3; k++ {
			for l := 0; l < 3; l++ {
				fi.vec[k][l] += c * complex(st.vec[k][l], 0)
				fi.dvec[k][l] += dc * complex(st.vec[k][l], 0)
			}
		}
	}
}

// scatter adds the contribution of triangle pair (m, n) to every basis
// function pair supported on it. When transposed, fi holds the integrals of
// pair (n, m).
func scatter(pb *potentialBlocks, o *geometry, m int, src *geometry, n int, fi *faceIntegrals, transposed bool) {
	l, s := pb.l.RawCMatrix(), pb.s.RawCMatrix()
	for _, fo := range o.basis.Faces[m] {
		for _, fs := range src.basis.Faces[n] {
			v, dv := fi.vec[fo.Vertex][fs.Vertex], fi.dvec[fo.Vertex][fs.Vertex]
			if transposed {
				v, dv = fi.vec[fs.Vertex][fo.Vertex], fi.dvec[fs.Vertex][fo.Vertex]
			}
			cl := complex(fo.Coefficient*fs.Coefficient, 0)
			cs := complex(fo.Divergence*fs.Divergence, 0)
			l.Data[fo.Function*l.Stride+fs.Function] += cl * v
			s.Data[fo.Function*s.Stride+fs.Function] += cs * fi.sca
			if pb.dl != nil {
				dl, ds := pb.dl.RawCMatrix(), pb.ds.RawCMatrix()
				dl.Data[fo.Function*dl.Stride+fs.Function] += cl * dv
				ds.Data[fo.Function*ds.Stride+fs.Function] += cs * fi.dsca
			}
		}
	}
}

// testField returns ⟨f_i, field⟩ for every basis function, or ⟨f_i, n x field⟩
// when cross is set.
func testField(g *geometry, field func(r r3.Vec) [3]complex128, cross bool) []complex128 {
	v := make([]complex128, g.basis.Len())
	for t, pts := range g.points {
		n := g.normals[t]
		for q, r := range pts {
			f := field(r)
			if cross {
				f = crossReal(n, f)
			}
			w := g.weights[q] * g.areas[t]
			for _, fo := range g.basis.Faces[t] {
				d := r3.Sub(r, g.verts[t][fo.Vertex])
				v[fo.Function] += complex(w*fo.Coefficient, 0) * cvec(f).dot(d)
			}
		}
	}
	return v
}

// crossReal returns a x f for a real vector a.
func crossReal(a r3.Vec, f [3]complex128) [3]complex128 {
	ax, ay, az := complex(a.X, 0), complex(a.Y, 0), complex(a.Z, 0)
	return [3]complex128{
		ay*f[2] - az*f[1],
		az*f[0] - ax*f[2],
		ax*f[1] - ay*f[0],
	}
}
