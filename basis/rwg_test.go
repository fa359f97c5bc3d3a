package basis

import (
	"math/cmplx"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/mesh"
	"github.com/notargets/gomodes/mesh/meshtest"
)

func TestRingBasis(t *testing.T) {
	m, err := meshtest.SquareRing(5e-3, 4e-3, 4, 1)
	require.NoError(t, err)
	b, err := New(m)
	require.NoError(t, err)
	assert.Equal(t, 32, b.Len())

	for i := 0; i < b.Len(); i++ {
		// no net charge
		q := 0.
		for _, h := range b.Halves(i) {
			q += h.Divergence * m.Areas[h.Triangle]
		}
		assert.InDelta(t, 0, q, 1e-15)

		// unit normal current through the defining edge from both sides
		e := m.Edges[b.Edges[i]]
		a, c := m.Nodes[e[0]], m.Nodes[e[1]]
		mid := r3.Scale(0.5, r3.Add(a, c))
		plus, minus := b.Plus[i], b.Minus[i]
		out := r3.Unit(r3.Cross(r3.Sub(c, a), m.Normals[plus.Triangle]))
		vp := m.Vertices(plus.Triangle)[plus.Vertex]
		if r3.Dot(r3.Sub(mid, vp), out) < 0 {
			out = r3.Scale(-1, out)
		}
		vm := m.Vertices(minus.Triangle)[minus.Vertex]
		fp := r3.Dot(r3.Scale(plus.Coefficient, r3.Sub(mid, vp)), out)
		fm := r3.Dot(r3.Scale(minus.Coefficient, r3.Sub(mid, vm)), out)
		assert.InDelta(t, 1, fp, 1e-12)
		assert.InDelta(t, 1, fm, 1e-12)
	}
}

func TestTransformsAndInterpolate(t *testing.T) {
	m, err := meshtest.Plate(1, 3)
	require.NoError(t, err)
	b, err := New(m)
	require.NoError(t, err)

	vt := b.VectorTransform()
	r, c := vt.Dims()
	assert.Equal(t, []int{b.Len(), 3 * len(m.Triangles)}, []int{r, c})

	coeffs := make([]complex128, b.Len())
	for i := range coeffs {
		coeffs[i] = complex(float64(i), 1)
	}
	_, current, charge, err := b.Interpolate(m.Nodes, coeffs)
	require.NoError(t, err)

	st := b.ScalarTransform()
	for tri := range m.Triangles {
		var want complex128
		for i := range coeffs {
			want += coeffs[i] * complex(st.At(i, tri), 0)
		}
		assert.InDelta(t, 0, cmplx.Abs(want-charge[tri]), 1e-12)
		// a flat plate carries no normal current
		assert.Equal(t, complex128(0), current[tri][2])
	}

	_, _, _, err = b.Interpolate(m.Nodes, coeffs[1:])
	assert.Error(t, err)
}

func TestContainer(t *testing.T) {
	m, err := meshtest.Plate(1, 2)
	require.NoError(t, err)
	c := NewContainer()

	var wg sync.WaitGroup
	got := make([]*Basis, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = c.Get(m)
		}(i)
	}
	wg.Wait()
	for _, b := range got {
		assert.Same(t, got[0], b)
	}
}

func TestNoInteriorEdges(t *testing.T) {
	m, err := mesh.New([]r3.Vec{{}, {X: 1}, {Y: 1}}, [][3]int{{0, 1, 2}})
	require.NoError(t, err)
	_, err = New(m)
	assert.ErrorIs(t, err, ErrNoBasis)
}
