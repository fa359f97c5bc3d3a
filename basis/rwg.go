package basis

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/mesh"
)

// ErrNoBasis is returned for meshes without interior edges.
var ErrNoBasis = errors.New("basis: mesh has no interior edges")

// Half is one triangle of an RWG function. On triangle T the function is
// Coefficient * (r - v_free), where v_free is the local vertex Vertex;
// its surface divergence is Divergence, constant on T.
type Half struct {
	Triangle    int
	Vertex      int     // local index (0..2) of the free vertex
	Coefficient float64 // ±l/(2A)
	Divergence  float64 // ±l/A
}

// Basis is the RWG (Rao-Wilton-Glisson) function space of a mesh: one
// divergence conforming function per interior edge.
type Basis struct {
	Mesh  *mesh.Mesh
	Edges []int            // mesh edge index of each function
	Plus  []Half           // current flows out of the plus triangle
	Minus []Half           // and into the minus triangle
	Faces [][]FaceFunction // functions touching each triangle
}

// FaceFunction ties a basis function to a local vertex of a triangle.
type FaceFunction struct {
	Function    int
	Vertex      int
	Coefficient float64
	Divergence  float64
}

// New builds the RWG basis of m. The lower indexed triangle of an edge is
// the plus triangle.
func New(m *mesh.Mesh) (*Basis, error) {
	b := &Basis{
		Mesh:  m,
		Faces: make([][]FaceFunction, len(m.Triangles)),
	}
	for e, faces := range m.EdgeFaces {
		if len(faces) != 2 {
			continue
		}
		p, q := faces[0], faces[1]
		if q.Triangle < p.Triangle {
			p, q = q, p
		}
		l := r3.Norm(r3.Sub(m.Nodes[m.Edges[e][0]], m.Nodes[m.Edges[e][1]]))
		fn := len(b.Edges)
		b.Edges = append(b.Edges, e)
		plus := Half{
			Triangle:    p.Triangle,
			Vertex:      p.Local,
			Coefficient: l / (2 * m.Areas[p.Triangle]),
			Divergence:  l / m.Areas[p.Triangle],
		}
		minus := Half{
			Triangle:    q.Triangle,
			Vertex:      q.Local,
			Coefficient: -l / (2 * m.Areas[q.Triangle]),
			Divergence:  -l / m.Areas[q.Triangle],
		}
		b.Plus = append(b.Plus, plus)
		b.Minus = append(b.Minus, minus)
		for _, h := range []Half{plus, minus} {
			b.Faces[h.Triangle] = append(b.Faces[h.Triangle], FaceFunction{
				Function:    fn,
				Vertex:      h.Vertex,
				Coefficient: h.Coefficient,
				Divergence:  h.Divergence,
			})
		}
	}
	if len(b.Edges) == 0 {
		return nil, ErrNoBasis
	}
	return b, nil
}

// Len is the number of basis functions.
func (b *Basis) Len() int { return len(b.Edges) }

// Halves returns both triangle halves of function i.
func (b *Basis) Halves(i int) [2]Half { return [2]Half{b.Plus[i], b.Minus[i]} }

// VectorTransform maps the 3 per-triangle vertex functions (r - v_k),
// indexed 3*t+k, onto the basis: an N x 3F matrix.
func (b *Basis) VectorTransform() *mat.Dense {
	t := mat.NewDense(b.Len(), 3*len(b.Mesh.Triangles), nil)
	for i := range b.Edges {
		for _, h := range b.Halves(i) {
			t.Set(i, 3*h.Triangle+h.Vertex, h.Coefficient)
		}
	}
	return t
}

// ScalarTransform maps per-triangle constant charge onto the basis
// divergence: an N x F matrix.
func (b *Basis) ScalarTransform() *mat.Dense {
	t := mat.NewDense(b.Len(), len(b.Mesh.Triangles), nil)
	for i := range b.Edges {
		for _, h := range b.Halves(i) {
			t.Set(i, h.Triangle, h.Divergence)
		}
	}
	return t
}

// Interpolate evaluates the current expansion coeffs at each triangle
// centre. nodes are the (placed) mesh nodes. It returns the centres, the
// vector current and the surface divergence of each triangle.
func (b *Basis) Interpolate(nodes []r3.Vec, coeffs []complex128) ([]r3.Vec, [][3]complex128, []complex128, error) {
	if len(coeffs) != b.Len() {
		return nil, nil, nil, fmt.Errorf("basis: %d coefficients for %d functions", len(coeffs), b.Len())
	}
	nt := len(b.Mesh.Triangles)
	centres := make([]r3.Vec, nt)
	current := make([][3]complex128, nt)
	charge := make([]complex128, nt)
	for t, tri := range b.Mesh.Triangles {
		c := r3.Scale(1./3, r3.Add(r3.Add(nodes[tri[0]], nodes[tri[1]]), nodes[tri[2]]))
		centres[t] = c
		for _, f := range b.Faces[t] {
			d := r3.Sub(c, nodes[tri[f.Vertex]])
			a := coeffs[f.Function] * complex(f.Coefficient, 0)
			current[t][0] += a * complex(d.X, 0)
			current[t][1] += a * complex(d.Y, 0)
			current[t][2] += a * complex(d.Z, 0)
			charge[t] += coeffs[f.Function] * complex(f.Divergence, 0)
		}
	}
	return centres, current, charge, nil
}

// Container memoises one Basis per mesh identity.
type Container struct {
	mu    sync.Mutex
	cache map[uuid.UUID]*entry
}

type entry struct {
	once  sync.Once
	basis *Basis
	err   error

	lsOnce sync.Once
	ls     *LoopStarBasis
	lsErr  error
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{cache: make(map[uuid.UUID]*entry)}
}

// Get returns the basis of m, building it on first use. Concurrent callers
// for the same mesh share one construction.
func (c *Container) Get(m *mesh.Mesh) (*Basis, error) {
	e := c.entry(m)
	e.once.Do(func() { e.basis, e.err = New(m) })
	return e.basis, e.err
}

func (c *Container) entry(m *mesh.Mesh) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[m.ID]
	if !ok {
		e = &entry{}
		c.cache[m.ID] = e
	}
	return e
}

// LoopStar returns the loop-star functions of m, built once from its RWG
// basis.
func (c *Container) LoopStar(m *mesh.Mesh) (*LoopStarBasis, error) {
	b, err := c.Get(m)
	if err != nil {
		return nil, err
	}
	e := c.entry(m)
	e.lsOnce.Do(func() { e.ls, e.lsErr = NewLoopStar(b) })
	return e.ls, e.lsErr
}
