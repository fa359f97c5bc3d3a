package operator

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/parts"
)

// Penetrable solves for equivalent electric (J) and magnetic (M) surface
// currents on closed dielectric parts. Rows are tested against E then H;
// columns are J then M.
type Penetrable struct {
	*base
	ctf bool
}

// NewPMCHWT combines interior and exterior equations with unit weights.
func NewPMCHWT(cfg Config) (*Penetrable, error) {
	b, err := newBase("pmchwt", cfg)
	if err != nil {
		return nil, err
	}
	return &Penetrable{base: b}, nil
}

// NewCTF weights each medium by its relative impedance (combined tangential
// form).
func NewCTF(cfg Config) (*Penetrable, error) {
	b, err := newBase("ctf", cfg)
	if err != nil {
		return nil, err
	}
	return &Penetrable{base: b, ctf: true}, nil
}

func (op *Penetrable) Reciprocal() bool { return false }

func (op *Penetrable) Info() Info {
	name := "PMCHWT"
	if op.ctf {
		name = "CTF"
	}
	return Info{Name: name, Unknowns: 2, Sources: []string{"E", "H"}}
}

func (op *Penetrable) validate(p *parts.Part) error {
	if !p.Mesh.Closed {
		return fmt.Errorf("%w: part %q is not closed", ErrValidation, p.Name)
	}
	if material.IsPEC(p.Material) {
		return fmt.Errorf("%w: part %q is a perfect conductor", ErrValidation, p.Name)
	}
	return nil
}

func (op *Penetrable) ImpedanceSingleParts(s complex128, o, src *parts.Part, opts ...impedance.Option) (*impedance.Decomposition, error) {
	if src == nil {
		src = o
	}
	for _, p := range []*parts.Part{o, src} {
		if err := op.validate(p); err != nil {
			return nil, err
		}
	}
	if impedance.Apply(opts...).FrequencyDerivatives {
		return nil, fmt.Errorf("%w: %s frequency derivatives", ErrNotImplemented, op.Info().Name)
	}
	g, gs, self, err := op.pair(o, src)
	if err != nil {
		return nil, err
	}
	d := &impedance.Decomposition{
		S:        s,
		Sections: 2,
		Rows:     g.basis.Len(),
		Cols:     gs.basis.Len(),
	}
	op.addMedium(d, "o", op.bg, 1, g, gs, self)
	if self {
		op.addMedium(d, "i", o.Material, -1, g, gs, self)
	}
	for _, t := range d.Terms {
		if linalg.HasNaN(t.Block) {
			return nil, fmt.Errorf("%w: %s block of %q", ErrInvalidComputation, t.Name, o.Name)
		}
	}
	return d, nil
}

// addMedium appends the terms of one medium. side is +1 outside the part and
// -1 inside, where the surface normal points away from the medium.
func (op *Penetrable) addMedium(d *impedance.Decomposition, suffix string, med material.Material, side float64, g, gs *geometry, self bool) {
	s := d.S
	gamma := material.Wavenumber(med, s)
	c := complex(material.C, 0) / material.RefractiveIndex(med, s)
	eta := material.Eta(med, s)
	wE, wH := complex128(1), complex128(1)
	if op.ctf {
		eta = material.EtaR(med, s)
		wE, wH = 1/eta, eta
	}
	pot := op.potentials(gamma, g, gs, self, false)
	kt, gram := op.curl(gamma, g, gs, self, false)
	if self {
		linalg.AddScaled(kt, 0, 0, complex(side/2, 0), gram)
	}
	d.Terms = append(d.Terms,
		impedance.Term{Name: "L_E" + suffix, Row: 0, Col: 0, Power: 1, Weight: wE * eta / c, Block: pot.l},
		impedance.Term{Name: "S_E" + suffix, Row: 0, Col: 0, Power: -1, Weight: wE * eta * c, Block: pot.s},
		impedance.Term{Name: "K_E" + suffix, Row: 0, Col: 1, Power: 0, Weight: -wE, Block: kt},
		impedance.Term{Name: "K_H" + suffix, Row: 1, Col: 0, Power: 0, Weight: wH, Block: kt},
		impedance.Term{Name: "L_H" + suffix, Row: 1, Col: 1, Power: 1, Weight: wH / (eta * c), Block: pot.l},
		impedance.Term{Name: "S_H" + suffix, Row: 1, Col: 1, Power: -1, Weight: wH * c / eta, Block: pot.s},
	)
}

func (op *Penetrable) SourceVector(src Source, s complex128, p *parts.Part) ([]complex128, error) {
	if err := op.validate(p); err != nil {
		return nil, err
	}
	g, err := op.geometry(p)
	if err != nil {
		return nil, err
	}
	ve := testField(g, func(r r3.Vec) [3]complex128 {
		e, _ := src.Fields(s, op.bg, r)
		return e
	}, false)
	vh := testField(g, func(r r3.Vec) [3]complex128 {
		_, h := src.Fields(s, op.bg, r)
		return h
	}, false)
	if op.ctf {
		er, eta := material.EtaR(op.bg, s), material.Eta(op.bg, s)
		for i := range ve {
			ve[i] /= er
			vh[i] *= eta
		}
	}
	return append(ve, vh...), nil
}
