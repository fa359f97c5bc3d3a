package operator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/element"
	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/parts"
)

// MFIE is the magnetic field integral equation for closed perfect
// conductors, tested either with n x (normal form) or directly
// (tangential form).
type MFIE struct {
	*base
	tangential bool
}

func NewMFIE(cfg Config, tangential bool) (*MFIE, error) {
	name := "mfie"
	if tangential {
		name = "tmfie"
	}
	b, err := newBase(name, cfg)
	if err != nil {
		return nil, err
	}
	return &MFIE{base: b, tangential: tangential}, nil
}

func (op *MFIE) Reciprocal() bool { return false }

func (op *MFIE) Info() Info {
	name := "MFIE"
	if op.tangential {
		name = "tangential MFIE"
	}
	return Info{
		Name:        name,
		SourceCross: !op.tangential,
		Unknowns:    1,
		Sources:     []string{"H"},
	}
}

func (op *MFIE) ImpedanceSingleParts(s complex128, o, src *parts.Part, opts ...impedance.Option) (*impedance.Decomposition, error) {
	if src != nil && src != o {
		return nil, fmt.Errorf("%w: mutual MFIE impedance", ErrNotImplemented)
	}
	if impedance.Apply(opts...).FrequencyDerivatives {
		return nil, fmt.Errorf("%w: MFIE frequency derivatives", ErrNotImplemented)
	}
	if !material.IsPEC(o.Material) {
		return nil, fmt.Errorf("%w: part %q is not a perfect conductor", ErrValidation, o.Name)
	}
	g, err := op.geometry(o)
	if err != nil {
		return nil, err
	}
	gamma := material.Wavenumber(op.bg, s)
	k, gram := op.curl(gamma, g, g, true, !op.tangential)
	n := g.basis.Len()
	z := mat.NewCDense(n, n, nil)
	if op.tangential {
		linalg.AddScaled(z, 0, 0, -0.5, gram)
	} else {
		linalg.AddScaled(z, 0, 0, 0.5, gram)
	}
	linalg.AddScaled(z, 0, 0, -1, k)
	if linalg.HasNaN(z) {
		return nil, fmt.Errorf("%w: MFIE block of %q", ErrInvalidComputation, o.Name)
	}
	return &impedance.Decomposition{
		S:        s,
		Sections: 1,
		Rows:     n,
		Cols:     n,
		Terms:    []impedance.Term{{Name: "Z", Power: 0, Weight: 1, Block: z}},
	}, nil
}

func (op *MFIE) SourceVector(src Source, s complex128, p *parts.Part) ([]complex128, error) {
	g, err := op.geometry(p)
	if err != nil {
		return nil, err
	}
	return testField(g, func(r r3.Vec) [3]complex128 {
		_, h := src.Fields(s, op.bg, r)
		return h
	}, !op.tangential), nil
}

// curl returns the principal value block ⟨f_i, T ∫ grad G x f_j⟩ and, for
// self blocks, the Gram block ⟨f_i, T' f_j⟩. T is n x when crossK is set and
// the identity otherwise; T' is the other one.
func (b *base) curl(gamma complex128, o, src *geometry, self, crossK bool) (k, gram *mat.CDense) {
	no, ns := o.basis.Len(), src.basis.Len()
	k = mat.NewCDense(no, ns, nil)
	if self {
		gram = mat.NewCDense(no, no, nil)
	}
	x, w := element.LineRule(b.near, 0, 1)
	var near []weightedPoint
	for m := range o.verts {
		if self {
			addGram(gram, o, m, !crossK)
		}
		for n := range src.verts {
			if self && (m == n || coplanar(o, m, src, n)) {
				continue
			}
			adjacent := self && o.part.Mesh.SharedVertices(m, n) > 0
			var kf [3][3]complex128
			for i, r := range o.points[m] {
				wi := o.weights[i] * o.areas[m]
				if adjacent {
					near = duffy(near[:0], r, src.verts[n], src.normals[n], x, w)
				} else {
					near = near[:0]
					for j, rp := range src.points[n] {
						near = append(near, weightedPoint{p: rp, w: src.weights[j] * src.areas[n]})
					}
				}
				var acc [3]cvec // ∫ f (r - r') x (r' - v_l)
				for _, p := range near {
					d := r3.Sub(r, p.p)
					f := gradGreen(gamma, r3.Norm(d)) * complex(p.w, 0)
					for l := 0; l < 3; l++ {
						acc[l].add(f, r3.Cross(d, r3.Sub(p.p, src.verts[n][l])))
					}
				}
				for l := 0; l < 3; l++ {
					t := [3]complex128(acc[l])
					if crossK {
						t = crossReal(o.normals[m], t)
					}
					for kk := 0; kk < 3; kk++ {
						kf[kk][l] += complex(wi, 0) * cvec(t).dot(r3.Sub(r, o.verts[m][kk]))
					}
				}
			}
			raw := k.RawCMatrix()
			for _, fo := range o.basis.Faces[m] {
				for _, fs := range src.basis.Faces[n] {
					raw.Data[fo.Function*raw.Stride+fs.Function] +=
						complex(fo.Coefficient*fs.Coefficient, 0) * kf[fo.Vertex][fs.Vertex]
				}
			}
		}
	}
	return k, gram
}

// addGram adds ⟨f_i, f_j⟩ over triangle t, or ⟨f_i, n x f_j⟩ when cross.
func addGram(gram *mat.CDense, g *geometry, t int, cross bool) {
	var gf [3][3]float64
	n := g.normals[t]
	for q, r := range g.points[t] {
		w := g.weights[q] * g.areas[t]
		for k := 0; k < 3; k++ {
			a := r3.Sub(r, g.verts[t][k])
			for l := 0; l < 3; l++ {
				b := r3.Sub(r, g.verts[t][l])
				if cross {
					b = r3.Cross(n, b)
				}
				gf[k][l] += w * r3.Dot(a, b)
			}
		}
	}
	raw := gram.RawCMatrix()
	for _, fo := range g.basis.Faces[t] {
		for _, fs := range g.basis.Faces[t] {
			raw.Data[fo.Function*raw.Stride+fs.Function] +=
				complex(fo.Coefficient*fs.Coefficient*gf[fo.Vertex][fs.Vertex], 0)
		}
	}
}
