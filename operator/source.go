package operator

import (
	"math/cmplx"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/material"
)

// Source is an incident field.
type Source interface {
	Fields(s complex128, bg material.Material, r r3.Vec) (e, h [3]complex128)
}

// PlaneWave propagates along K with electric polarisation E. K is
// normalised on use; E carries the amplitude.
type PlaneWave struct {
	E, K r3.Vec
}

func (pw PlaneWave) Fields(s complex128, bg material.Material, r r3.Vec) (e, h [3]complex128) {
	k := r3.Unit(pw.K)
	phase := cmplx.Exp(-material.Wavenumber(bg, s) * complex(r3.Dot(k, r), 0))
	e = [3]complex128{
		complex(pw.E.X, 0) * phase,
		complex(pw.E.Y, 0) * phase,
		complex(pw.E.Z, 0) * phase,
	}
	h = crossReal(k, e)
	eta := material.Eta(bg, s)
	for i := range h {
		h[i] /= eta
	}
	return e, h
}
