package parts

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/material"
	"github.com/notargets/gomodes/mesh/meshtest"
)

func TestTransformPreservesDistances(t *testing.T) {
	m, err := meshtest.Plate(1, 2)
	require.NoError(t, err)
	p := New(m, nil)
	assert.True(t, material.IsPEC(p.Material))

	p.Rotate(r3.Vec{X: 1, Y: 2, Z: 3}, 0.7)
	p.Translate(r3.Vec{X: 5, Y: -1})
	nodes := p.Nodes()
	for i := range nodes {
		for j := range nodes {
			want := r3.Norm(r3.Sub(m.Nodes[i], m.Nodes[j]))
			got := r3.Norm(r3.Sub(nodes[i], nodes[j]))
			assert.InDelta(t, want, got, 1e-12)
		}
	}
	for _, n := range p.Normals() {
		assert.InDelta(t, 1, r3.Norm(n), 1e-12)
	}

	p.Reset()
	assert.Equal(t, m.Nodes, p.Nodes())
}

func TestRotateFullTurn(t *testing.T) {
	tr := Identity().Translate(r3.Vec{X: 1, Y: 2, Z: 3}).Rotate(r3.Vec{Z: 1}, 2*math.Pi)
	got := tr.Apply(r3.Vec{X: 1})
	assert.InDelta(t, 2, got.X, 1e-12)
	assert.InDelta(t, 2, got.Y, 1e-12)
	assert.InDelta(t, 3, got.Z, 1e-12)

	// a quarter turn about z maps the translated point (1,0,0) onto the y axis
	q := Identity().Translate(r3.Vec{X: 1}).Rotate(r3.Vec{Z: 1}, math.Pi/2).Apply(r3.Vec{})
	assert.InDelta(t, 0, q.X, 1e-12)
	assert.InDelta(t, 1, math.Abs(q.Y), 1e-12)
}

func TestLayout(t *testing.T) {
	m, err := meshtest.Plate(1, 1)
	require.NoError(t, err)
	a, b, c := New(m, nil), New(m, nil), New(m, nil)

	l, err := NewLayout([]*Part{a, b}, []int{3, 5})
	require.NoError(t, err)
	assert.Equal(t, 8, l.Len())

	start, end, err := l.Range(b)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 8}, []int{start, end})

	_, _, err = l.Range(c)
	assert.True(t, errors.Is(err, ErrUnknownPart))

	v := NewVector(l)
	require.NoError(t, v.Set(b, []complex128{1, 2, 3, 4, 5}))
	pa, err := v.Part(a)
	require.NoError(t, err)
	assert.Equal(t, []complex128{0, 0, 0}, pa)
	assert.Equal(t, complex128(5), v.Data[7])
	assert.Error(t, v.Set(a, []complex128{1}))

	_, err = NewLayout([]*Part{a, a}, []int{1, 1})
	assert.True(t, errors.Is(err, ErrLayout))
}
