package operator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/element"
	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/logging"
	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/parts"
)

// Operator is a surface integral equation formulation.
type Operator interface {
	impedance.Calculator
	// SourceVector tests the incident field of src on part p. Operators with
	// two unknowns return the E tested vector followed by the H tested one.
	SourceVector(src Source, s complex128, p *parts.Part) ([]complex128, error)
	Basis(p *parts.Part) (*basis.Basis, error)
	Info() Info
}

// Info describes an operator's structure.
type Info struct {
	Name        string
	Reciprocal  bool
	SourceCross bool     // sources are tested as n x field
	Unknowns    int      // unknown kinds per basis function: 1 (J) or 2 (J, M)
	Sources     []string // incident field components used
	Basis       basis.Kind
}

// Config selects integration accuracy and the background medium.
type Config struct {
	Rule                element.Rule // regular quadrature; 3x3 collapsed rule when nil
	SingularTerms       int          // terms of the Green's function integrated analytically
	SingularityAccuracy float64      // relative accuracy target for extracted terms
	NearOrder           int          // polar rule points per direction for near curl integrals
	Basis               string       // rwg (default) or loop_star
	Background          material.Material
	Bases               *basis.Container
	Logger              *slog.Logger
}

// New builds an operator by name: efie, mfie, tmfie, pmchwt or ctf,
// expressed in the basis named by cfg.Basis.
func New(kind string, cfg Config) (Operator, error) {
	bk, err := basis.ParseKind(cfg.Basis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImplemented, err)
	}
	if cfg.Bases == nil {
		cfg.Bases = basis.NewContainer()
	}
	op, err := newKind(kind, cfg)
	if err != nil {
		return nil, err
	}
	if bk == basis.LoopStar {
		return &loopStar{Operator: op, bases: cfg.Bases}, nil
	}
	return op, nil
}

func newKind(kind string, cfg Config) (Operator, error) {
	switch strings.ToLower(kind) {
	case "efie":
		return NewEFIE(cfg)
	case "mfie":
		return NewMFIE(cfg, false)
	case "tmfie":
		return NewMFIE(cfg, true)
	case "pmchwt":
		return NewPMCHWT(cfg)
	case "ctf":
		return NewCTF(cfg)
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrNotImplemented, kind)
}

type base struct {
	rule     element.Rule
	near     int
	bg       material.Material
	bases    *basis.Container
	singular *singularCache
	log      *slog.Logger
}

func newBase(name string, cfg Config) (*base, error) {
	b := &base{
		rule:  cfg.Rule,
		near:  cfg.NearOrder,
		bg:    cfg.Background,
		bases: cfg.Bases,
		log:   cfg.Logger,
	}
	if b.rule == nil {
		rule, err := element.NewTriangleRule(3)
		if err != nil {
			return nil, err
		}
		b.rule = rule
	}
	if b.near == 0 {
		b.near = 8
	}
	if b.bg == nil {
		b.bg = material.FreeSpace
	}
	if b.bases == nil {
		b.bases = basis.NewContainer()
	}
	b.log = logging.Discard(b.log)
	terms, accuracy := cfg.SingularTerms, cfg.SingularityAccuracy
	if terms == 0 {
		terms = 2
	}
	if accuracy == 0 {
		accuracy = 1e-5
	}
	if terms < 1 || accuracy <= 0 || b.near < 1 {
		return nil, fmt.Errorf("%w: singular terms %d, accuracy %g, near order %d",
			ErrValidation, terms, accuracy, b.near)
	}
	if material.IsPEC(b.bg) {
		return nil, fmt.Errorf("%w: background medium cannot be a perfect conductor", ErrValidation)
	}
	b.singular = newSingularCache(terms, accuracy)
	b.log.Info("creating operator", "operator", name, "background", b.bg.Name(),
		"singular_terms", terms)
	return b, nil
}

func (b *base) Basis(p *parts.Part) (*basis.Basis, error) {
	return b.bases.Get(p.Mesh)
}

func (b *base) geometry(p *parts.Part) (*geometry, error) {
	bs, err := b.bases.Get(p.Mesh)
	if err != nil {
		return nil, err
	}
	return newGeometry(p, bs, b.rule), nil
}

// pair resolves a nil source to the self term and prepares both geometries.
func (b *base) pair(o, src *parts.Part) (*geometry, *geometry, bool, error) {
	if src == nil {
		src = o
	}
	g, err := b.geometry(o)
	if err != nil {
		return nil, nil, false, err
	}
	if src == o {
		return g, g, true, nil
	}
	gs, err := b.geometry(src)
	if err != nil {
		return nil, nil, false, err
	}
	return g, gs, false, nil
}
