package material

import (
	"math"
	"math/cmplx"
)

const (
	C    = 299792458.0       // speed of light in vacuum [m/s]
	Mu0  = 4e-7 * math.Pi    // vacuum permeability [H/m]
	Eps0 = 1 / (Mu0 * C * C) // vacuum permittivity [F/m]
	Eta0 = Mu0 * C           // free space wave impedance [Ohm]
)

// Material describes a linear isotropic medium through its relative
// constitutive parameters as functions of complex frequency.
type Material interface {
	Name() string
	EpsilonR(s complex128) complex128
	MuR(s complex128) complex128
}

// EtaR is the intrinsic impedance relative to free space.
func EtaR(m Material, s complex128) complex128 {
	return cmplx.Sqrt(m.MuR(s) / m.EpsilonR(s))
}

// Eta is the absolute intrinsic impedance.
func Eta(m Material, s complex128) complex128 {
	return EtaR(m, s) * Eta0
}

// RefractiveIndex is sqrt(epsilon_r mu_r).
func RefractiveIndex(m Material, s complex128) complex128 {
	return cmplx.Sqrt(m.EpsilonR(s) * m.MuR(s))
}

// Wavenumber is the propagation constant gamma = s n / c of the medium.
func Wavenumber(m Material, s complex128) complex128 {
	return s * RefractiveIndex(m, s) / C
}

type pec struct{}

func (pec) Name() string                   { return "PEC" }
func (pec) EpsilonR(complex128) complex128 { return cmplx.Inf() }
func (pec) MuR(complex128) complex128      { return 1 }

// PEC is the perfect electric conductor sentinel. It has no finite
// constitutive parameters and must be detected with IsPEC.
var PEC Material = pec{}

// IsPEC reports whether m is the perfect conductor sentinel.
func IsPEC(m Material) bool {
	_, ok := m.(pec)
	return ok
}

// Constant is a non-dispersive medium.
type Constant struct {
	Label string
	Eps   complex128
	Mu    complex128
}

func (c Constant) Name() string                   { return c.Label }
func (c Constant) EpsilonR(complex128) complex128 { return c.Eps }
func (c Constant) MuR(complex128) complex128      { return c.Mu }

// FreeSpace is the default background medium.
var FreeSpace Material = Constant{Label: "free space", Eps: 1, Mu: 1}

// Drude is a free electron permittivity model
// eps(s) = EpsInf + OmegaP^2 / (s (s + Gamma)), with mu_r = 1.
type Drude struct {
	Label  string
	EpsInf float64
	OmegaP float64 // plasma frequency [rad/s]
	Gamma  float64 // collision frequency [rad/s]
}

func (d Drude) Name() string { return d.Label }
func (d Drude) EpsilonR(s complex128) complex128 {
	return complex(d.EpsInf, 0) + complex(d.OmegaP*d.OmegaP, 0)/(s*(s+complex(d.Gamma, 0)))
}
func (d Drude) MuR(complex128) complex128 { return 1 }
