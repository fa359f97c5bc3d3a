package operator

import (
	"fmt"

	"github.com/notargets/gomodes/basis"
	"github.com/notargets/gomodes/impedance"
	"github.com/notargets/gomodes/linalg"
	"github.com/notargets/gomodes/parts"
)

// loopStar expresses an RWG operator in loop-star unknowns: Z' = T^T Z T
// per section and V' = T^T V. Currents solved against it are loop-star
// coefficients; basis.LoopStarBasis.ToRWG maps them back.
type loopStar struct {
	Operator
	bases *basis.Container
}

func (ls *loopStar) Info() Info {
	info := ls.Operator.Info()
	info.Basis = basis.LoopStar
	return info
}

func (ls *loopStar) ImpedanceSingleParts(s complex128, o, src *parts.Part, opts ...impedance.Option) (*impedance.Decomposition, error) {
	d, err := ls.Operator.ImpedanceSingleParts(s, o, src, opts...)
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = o
	}
	to, err := ls.bases.LoopStar(o.Mesh)
	if err != nil {
		return nil, fmt.Errorf("loop-star basis of %q: %w", o.Name, err)
	}
	ts := to
	if src.Mesh != o.Mesh {
		if ts, err = ls.bases.LoopStar(src.Mesh); err != nil {
			return nil, fmt.Errorf("loop-star basis of %q: %w", src.Name, err)
		}
	}
	return d.Transform(to.Complex(), ts.Complex())
}

func (ls *loopStar) SourceVector(src Source, s complex128, p *parts.Part) ([]complex128, error) {
	v, err := ls.Operator.SourceVector(src, s, p)
	if err != nil {
		return nil, err
	}
	t, err := ls.bases.LoopStar(p.Mesh)
	if err != nil {
		return nil, fmt.Errorf("loop-star basis of %q: %w", p.Name, err)
	}
	tt := linalg.Transpose(t.Complex())
	n := t.Len()
	out := make([]complex128, 0, len(v))
	for start := 0; start < len(v); start += n {
		out = append(out, linalg.MulVec(tt, v[start:start+n])...)
	}
	return out, nil
}
