package impedance

import (
	"fmt"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/parts"
)

// Options modify a single impedance calculation.
type Options struct {
	FrequencyDerivatives bool
}

// Option sets a calculation option.
type Option func(*Options)

// WithFrequencyDerivatives requests dZ/ds alongside the decomposition.
func WithFrequencyDerivatives() Option {
	return func(o *Options) { o.FrequencyDerivatives = true }
}

// Apply folds opts into an Options value.
func Apply(opts ...Option) Options {
	var o Options
	for _, f := range opts {
		f(&o)
	}
	return o
}

// Calculator produces the impedance block between an observer and a
// source part. partS == partO requests the self term.
type Calculator interface {
	ImpedanceSingleParts(s complex128, partO, partS *parts.Part, opts ...Option) (*Decomposition, error)
	Reciprocal() bool
}

// Parts is the block impedance matrix of several parts at one frequency.
type Parts struct {
	S      complex128
	Parts  []*parts.Part
	Blocks [][]*Decomposition // [observer][source]
	Layout *parts.Layout
}

// Assemble computes every (observer, source) block. For a reciprocal
// calculator a block whose mirror was already computed is taken as the
// mirror's transpose.
func Assemble(calc Calculator, s complex128, ps []*parts.Part, opts ...Option) (*Parts, error) {
	n := len(ps)
	z := &Parts{S: s, Parts: ps, Blocks: make([][]*Decomposition, n)}
	for o := range ps {
		z.Blocks[o] = make([]*Decomposition, n)
	}
	for o := range ps {
		for src := range ps {
			if calc.Reciprocal() && src < o {
				z.Blocks[o][src] = z.Blocks[src][o].Transpose()
				continue
			}
			d, err := calc.ImpedanceSingleParts(s, ps[o], ps[src], opts...)
			if err != nil {
				return nil, fmt.Errorf("impedance of part %d due to part %d: %w", o, src, err)
			}
			z.Blocks[o][src] = d
		}
	}
	sizes := make([]int, n)
	for i := range ps {
		sizes[i], _ = z.Blocks[i][i].Dims()
	}
	layout, err := parts.NewLayout(ps, sizes)
	if err != nil {
		return nil, err
	}
	z.Layout = layout
	return z, nil
}

// Block returns the decomposition of observer o due to source src.
func (z *Parts) Block(o, src *parts.Part) (*Decomposition, error) {
	i, ok := z.Layout.Index(o)
	j, ok2 := z.Layout.Index(src)
	if !ok || !ok2 {
		return nil, parts.ErrUnknownPart
	}
	return z.Blocks[i][j], nil
}

// Combined stacks every block into one matrix following Layout.
func (z *Parts) Combined() *mat.CDense {
	n := z.Layout.Len()
	full := mat.NewCDense(n, n, nil)
	for o := range z.Parts {
		for s := range z.Parts {
			linalg.AddScaled(full, z.Layout.Offsets[o], z.Layout.Offsets[s], 1, z.Blocks[o][s].Value())
		}
	}
	return full
}

// CombinedSource stacks the per part entries of v in the order of Layout.
func (z *Parts) CombinedSource(v *parts.Vector) ([]complex128, error) {
	if v.Layout.Len() != z.Layout.Len() {
		return nil, fmt.Errorf("%w: source has %d unknowns, system %d", linalg.ErrShape, v.Layout.Len(), z.Layout.Len())
	}
	out := make([]complex128, z.Layout.Len())
	for i, p := range z.Parts {
		vp, err := v.Part(p)
		if err != nil {
			return nil, err
		}
		copy(out[z.Layout.Offsets[i]:z.Layout.Offsets[i+1]], vp)
	}
	return out, nil
}

// Solve returns the current excited by source vector v.
func (z *Parts) Solve(v *parts.Vector) (*parts.Vector, error) {
	b, err := z.CombinedSource(v)
	if err != nil {
		return nil, err
	}
	x, err := linalg.SolveVec(z.Combined(), b)
	if err != nil {
		return nil, err
	}
	return &parts.Vector{Layout: z.Layout, Data: x}, nil
}

// Reduced projects the system onto per-part modal bases. modes[i] holds the
// basis vectors of part i as columns.
func (z *Parts) Reduced(modes []*mat.CDense) (*Reduced, error) {
	if len(modes) != len(z.Parts) {
		return nil, fmt.Errorf("%w: %d modal bases for %d parts", linalg.ErrShape, len(modes), len(z.Parts))
	}
	r := &Reduced{
		S:      z.S,
		Parts:  z.Parts,
		Modes:  modes,
		Full:   z.Layout,
		Blocks: make([][]*Decomposition, len(z.Parts)),
	}
	sizes := make([]int, len(z.Parts))
	for o := range z.Parts {
		_, sizes[o] = modes[o].Dims()
		r.Blocks[o] = make([]*Decomposition, len(z.Parts))
		for s := range z.Parts {
			d, err := z.Blocks[o][s].Project(modes[o], modes[s])
			if err != nil {
				return nil, fmt.Errorf("projecting block (%d,%d): %w", o, s, err)
			}
			r.Blocks[o][s] = d
		}
	}
	layout, err := parts.NewLayout(z.Parts, sizes)
	if err != nil {
		return nil, err
	}
	r.Layout = layout
	return r, nil
}

// Reduced is the eigenbasis projected form of Parts.
type Reduced struct {
	S      complex128
	Parts  []*parts.Part
	Modes  []*mat.CDense
	Blocks [][]*Decomposition
	Layout *parts.Layout // modal unknowns
	Full   *parts.Layout // original unknowns
}

// Value stacks the projected blocks.
func (r *Reduced) Value() *mat.CDense {
	n := r.Layout.Len()
	full := mat.NewCDense(n, n, nil)
	for o := range r.Parts {
		for s := range r.Parts {
			linalg.AddScaled(full, r.Layout.Offsets[o], r.Layout.Offsets[s], 1, r.Blocks[o][s].Value())
		}
	}
	return full
}

// ProjectSource returns J_a^T V_a for each part.
func (r *Reduced) ProjectSource(v *parts.Vector) (*parts.Vector, error) {
	out := parts.NewVector(r.Layout)
	for i, p := range r.Parts {
		va, err := v.Part(p)
		if err != nil {
			return nil, err
		}
		jt := linalg.Transpose(r.Modes[i])
		if err := out.Set(p, linalg.MulVec(jt, va)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Solve solves the reduced system and expands the modal coefficients back
// to a full current vector.
func (r *Reduced) Solve(v *parts.Vector) (*parts.Vector, error) {
	rv, err := r.ProjectSource(v)
	if err != nil {
		return nil, err
	}
	alpha, err := linalg.SolveVec(r.Value(), rv.Data)
	if err != nil {
		return nil, err
	}
	coeffs := &parts.Vector{Layout: r.Layout, Data: alpha}
	out := parts.NewVector(r.Full)
	for i, p := range r.Parts {
		a, err := coeffs.Part(p)
		if err != nil {
			return nil, err
		}
		if err := out.Set(p, linalg.MulVec(r.Modes[i], a)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Extinction returns Σ conj(v_i) x_i, the power extracted from the incident
// field by the induced current x.
func Extinction(v, x *parts.Vector) complex128 {
	return cmplxs.Dot(v.Data, x.Data)
}
