package impedance

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gomodes/linalg"
)

// ErrDecomposition reports a structurally invalid decomposition.
var ErrDecomposition = errors.New("impedance: invalid decomposition")

// Term is a frequency independent block of an impedance matrix. At
// frequency s it contributes Weight * s^Power * Block to section (Row, Col).
type Term struct {
	Name   string
	Row    int // observer section (0: E / electric testing, 1: H)
	Col    int // source section (0: J, 1: M)
	Power  int
	Weight complex128 // material weight evaluated at the decomposition frequency
	Block  *mat.CDense
}

// Decomposition is an impedance matrix at one frequency split into
// geometric blocks with analytic frequency scaling.
type Decomposition struct {
	S          complex128
	Sections   int // 1 for single unknown operators, 2 for (J, M)
	Rows, Cols int // per section sizes
	Terms      []Term
	Derivative *mat.CDense // dZ/ds, set only when requested and supported
}

// Dims returns the size of the assembled matrix.
func (d *Decomposition) Dims() (r, c int) {
	return d.Sections * d.Rows, d.Sections * d.Cols
}

// Validate checks that every block fits its section.
func (d *Decomposition) Validate() error {
	if d.Sections < 1 || d.Rows < 1 || d.Cols < 1 {
		return fmt.Errorf("%w: %d sections of %dx%d", ErrDecomposition, d.Sections, d.Rows, d.Cols)
	}
	for _, t := range d.Terms {
		r, c := t.Block.Dims()
		if r != d.Rows || c != d.Cols {
			return fmt.Errorf("%w: term %s is %dx%d, want %dx%d", ErrDecomposition, t.Name, r, c, d.Rows, d.Cols)
		}
		if t.Row < 0 || t.Row >= d.Sections || t.Col < 0 || t.Col >= d.Sections {
			return fmt.Errorf("%w: term %s placed at section (%d,%d)", ErrDecomposition, t.Name, t.Row, t.Col)
		}
	}
	return nil
}

func power(s complex128, p int) complex128 {
	v := complex128(1)
	for ; p > 0; p-- {
		v *= s
	}
	for ; p < 0; p++ {
		v /= s
	}
	return v
}

// Evaluate assembles the matrix at s with the material weights frozen at
// the decomposition frequency.
func (d *Decomposition) Evaluate(s complex128) *mat.CDense {
	r, c := d.Dims()
	z := mat.NewCDense(r, c, nil)
	for _, t := range d.Terms {
		linalg.AddScaled(z, t.Row*d.Rows, t.Col*d.Cols, t.Weight*power(s, t.Power), t.Block)
	}
	return z
}

// Value is the impedance matrix at the decomposition frequency.
func (d *Decomposition) Value() *mat.CDense { return d.Evaluate(d.S) }

// Term returns the first term with the given name.
func (d *Decomposition) Term(name string) (Term, bool) {
	for _, t := range d.Terms {
		if t.Name == name {
			return t, true
		}
	}
	return Term{}, false
}

// Collect sums the weighted blocks of one frequency power into a full size
// matrix, or returns nil when there are none.
func (d *Decomposition) Collect(p int) *mat.CDense {
	var z *mat.CDense
	for _, t := range d.Terms {
		if t.Power != p {
			continue
		}
		if z == nil {
			r, c := d.Dims()
			z = mat.NewCDense(r, c, nil)
		}
		linalg.AddScaled(z, t.Row*d.Rows, t.Col*d.Cols, t.Weight, t.Block)
	}
	return z
}

// Transpose returns the decomposition of the transposed matrix.
func (d *Decomposition) Transpose() *Decomposition {
	out := &Decomposition{
		S:        d.S,
		Sections: d.Sections,
		Rows:     d.Cols,
		Cols:     d.Rows,
		Terms:    make([]Term, len(d.Terms)),
	}
	for i, t := range d.Terms {
		t.Row, t.Col = t.Col, t.Row
		t.Block = linalg.Transpose(t.Block)
		out.Terms[i] = t
	}
	if d.Derivative != nil {
		out.Derivative = linalg.Transpose(d.Derivative)
	}
	return out
}

// Project returns the bilinear projection jo^T Z js, block by block. jo and
// js hold one vector per column spanning all sections; the result is a
// single section decomposition.
func (d *Decomposition) Project(jo, js *mat.CDense) (*Decomposition, error) {
	r, c := d.Dims()
	or, no := jo.Dims()
	sr, ns := js.Dims()
	if or != r || sr != c {
		return nil, fmt.Errorf("%w: projecting %dx%d with %d and %d row bases", ErrDecomposition, r, c, or, sr)
	}
	out := &Decomposition{S: d.S, Sections: 1, Rows: no, Cols: ns}
	for _, t := range d.Terms {
		o := jo.Slice(t.Row*d.Rows, (t.Row+1)*d.Rows, 0, no).(*mat.CDense)
		s := js.Slice(t.Col*d.Cols, (t.Col+1)*d.Cols, 0, ns).(*mat.CDense)
		out.Terms = append(out.Terms, Term{
			Name:   t.Name,
			Power:  t.Power,
			Weight: t.Weight,
			Block:  linalg.Project(o, t.Block, s),
		})
	}
	if d.Derivative != nil {
		out.Derivative = linalg.Project(jo, d.Derivative, js)
	}
	return out, nil
}

// Transform changes the unknowns of every section: each block B becomes
// to^T B ts. Unlike Project the section structure is kept, so to and ts
// are per section (Rows x r and Cols x c).
func (d *Decomposition) Transform(to, ts *mat.CDense) (*Decomposition, error) {
	or, no := to.Dims()
	sr, ns := ts.Dims()
	if or != d.Rows || sr != d.Cols {
		return nil, fmt.Errorf("%w: transforming %dx%d sections with %d and %d row bases", ErrDecomposition, d.Rows, d.Cols, or, sr)
	}
	out := &Decomposition{S: d.S, Sections: d.Sections, Rows: no, Cols: ns, Terms: make([]Term, len(d.Terms))}
	for i, t := range d.Terms {
		t.Block = linalg.Project(to, t.Block, ts)
		out.Terms[i] = t
	}
	if d.Derivative != nil {
		out.Derivative = linalg.Project(blockDiag(to, d.Sections), d.Derivative, blockDiag(ts, d.Sections))
	}
	return out, nil
}

func blockDiag(a *mat.CDense, n int) *mat.CDense {
	if n == 1 {
		return a
	}
	r, c := a.Dims()
	out := mat.NewCDense(n*r, n*c, nil)
	for k := 0; k < n; k++ {
		linalg.AddScaled(out, k*r, k*c, 1, a)
	}
	return out
}
