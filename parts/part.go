package parts

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/mesh"
)

// Part places a mesh of a given material in the simulation. Identity of
// the Part value (pointer equality) decides between self and mutual
// impedance; two parts may share one Mesh.
type Part struct {
	Name      string
	Mesh      *mesh.Mesh
	Material  material.Material
	Placement Transform
}

// New returns a part at the origin with no rotation.
func New(m *mesh.Mesh, mat material.Material) *Part {
	if mat == nil {
		mat = material.PEC
	}
	return &Part{Mesh: m, Material: mat, Placement: Identity()}
}

// Translate moves the part by offset.
func (p *Part) Translate(offset r3.Vec) { p.Placement = p.Placement.Translate(offset) }

// Rotate turns the part by angle radians about axis through the origin.
func (p *Part) Rotate(axis r3.Vec, angle float64) {
	p.Placement = p.Placement.Rotate(axis, angle)
}

// Reset returns the part to the mesh frame.
func (p *Part) Reset() { p.Placement = Identity() }

// Nodes returns the mesh nodes in the placed frame.
func (p *Part) Nodes() []r3.Vec {
	out := make([]r3.Vec, len(p.Mesh.Nodes))
	for i, n := range p.Mesh.Nodes {
		out[i] = p.Placement.Apply(n)
	}
	return out
}

// Normals returns the triangle normals in the placed frame.
func (p *Part) Normals() []r3.Vec {
	out := make([]r3.Vec, len(p.Mesh.Normals))
	for i, n := range p.Mesh.Normals {
		out[i] = p.Placement.ApplyDirection(n)
	}
	return out
}

// Transform is a rigid placement: x -> R x + T.
type Transform struct {
	R [3][3]float64
	T r3.Vec
}

// Identity is the transform of an unplaced part.
func Identity() Transform {
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Apply maps a point.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	return r3.Add(t.ApplyDirection(v), t.T)
}

// ApplyDirection maps a direction, ignoring translation.
func (t Transform) ApplyDirection(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t.R[0][0]*v.X + t.R[0][1]*v.Y + t.R[0][2]*v.Z,
		Y: t.R[1][0]*v.X + t.R[1][1]*v.Y + t.R[1][2]*v.Z,
		Z: t.R[2][0]*v.X + t.R[2][1]*v.Y + t.R[2][2]*v.Z,
	}
}

// Translate returns t followed by a shift.
func (t Transform) Translate(offset r3.Vec) Transform {
	t.T = r3.Add(t.T, offset)
	return t
}

// Rotate returns t followed by a rotation about axis through the origin.
func (t Transform) Rotate(axis r3.Vec, angle float64) Transform {
	var rot [3][3]float64
	for j, e := range []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}} {
		c := r3.Rotate(e, angle, axis)
		rot[0][j], rot[1][j], rot[2][j] = c.X, c.Y, c.Z
	}
	var out Transform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out.R[i][j] += rot[i][k] * t.R[k][j]
			}
		}
	}
	out.T = Transform{R: rot}.ApplyDirection(t.T)
	return out
}
