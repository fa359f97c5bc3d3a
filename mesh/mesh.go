package mesh

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidMesh reports a mesh that cannot carry a surface basis.
	ErrInvalidMesh = errors.New("mesh: invalid mesh")
)

// EdgeRef locates an edge inside a triangle. Local is the index of the
// triangle vertex opposite the edge.
type EdgeRef struct {
	Triangle int
	Local    int
}

// Mesh is a triangulated surface in its own (unplaced) coordinate frame.
// A Mesh is immutable after construction; ID is the identity key used by
// every per-geometry cache.
type Mesh struct {
	ID        uuid.UUID
	Nodes     []r3.Vec
	Triangles [][3]int
	Areas     []float64
	Normals   []r3.Vec    // unit normals, orientation from vertex order
	Edges     [][2]int    // node pairs, lower index first
	EdgeFaces [][]EdgeRef // triangles sharing each edge
	Closed    bool        // every edge is shared by exactly two triangles
}

// New builds the derived geometry and connectivity of a triangle mesh.
func New(nodes []r3.Vec, triangles [][3]int) (*Mesh, error) {
	if len(nodes) < 3 || len(triangles) == 0 {
		return nil, fmt.Errorf("%w: %d nodes, %d triangles", ErrInvalidMesh, len(nodes), len(triangles))
	}
	m := &Mesh{
		ID:        uuid.New(),
		Nodes:     nodes,
		Triangles: triangles,
		Areas:     make([]float64, len(triangles)),
		Normals:   make([]r3.Vec, len(triangles)),
	}
	for t, tri := range triangles {
		for _, n := range tri {
			if n < 0 || n >= len(nodes) {
				return nil, fmt.Errorf("%w: triangle %d references node %d of %d", ErrInvalidMesh, t, n, len(nodes))
			}
		}
		c := r3.Cross(r3.Sub(nodes[tri[1]], nodes[tri[0]]), r3.Sub(nodes[tri[2]], nodes[tri[0]]))
		twice := r3.Norm(c)
		if twice == 0 {
			return nil, fmt.Errorf("%w: triangle %d is degenerate", ErrInvalidMesh, t)
		}
		m.Areas[t] = twice / 2
		m.Normals[t] = r3.Scale(1/twice, c)
	}
	m.buildEdges()
	if err := m.Verify(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mesh) buildEdges() {
	index := make(map[[2]int]int)
	for t, tri := range m.Triangles {
		for k := 0; k < 3; k++ {
			a, b := tri[(k+1)%3], tri[(k+2)%3]
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			e, ok := index[key]
			if !ok {
				e = len(m.Edges)
				index[key] = e
				m.Edges = append(m.Edges, key)
				m.EdgeFaces = append(m.EdgeFaces, nil)
			}
			m.EdgeFaces[e] = append(m.EdgeFaces[e], EdgeRef{Triangle: t, Local: k})
		}
	}
	m.Closed = true
	for _, faces := range m.EdgeFaces {
		if len(faces) != 2 {
			m.Closed = false
			break
		}
	}
}

// Verify checks that the surface is a consistently oriented manifold.
func (m *Mesh) Verify() error {
	for e, faces := range m.EdgeFaces {
		// Verify 1: manifold - no edge joins more than two triangles
		if len(faces) > 2 {
			return fmt.Errorf("%w: edge %v shared by %d triangles", ErrInvalidMesh, m.Edges[e], len(faces))
		}
		// Verify 2: orientation - neighbours traverse the shared edge in opposite directions
		if len(faces) == 2 {
			if m.edgeDirection(faces[0]) == m.edgeDirection(faces[1]) {
				return fmt.Errorf("%w: triangles %d and %d have inconsistent orientation",
					ErrInvalidMesh, faces[0].Triangle, faces[1].Triangle)
			}
		}
	}
	return nil
}

func (m *Mesh) edgeDirection(ref EdgeRef) bool {
	tri := m.Triangles[ref.Triangle]
	return tri[(ref.Local+1)%3] < tri[(ref.Local+2)%3]
}

// Vertices returns the three corner positions of triangle t.
func (m *Mesh) Vertices(t int) [3]r3.Vec {
	tri := m.Triangles[t]
	return [3]r3.Vec{m.Nodes[tri[0]], m.Nodes[tri[1]], m.Nodes[tri[2]]}
}

// Centroid returns the centre of triangle t.
func (m *Mesh) Centroid(t int) r3.Vec {
	v := m.Vertices(t)
	return r3.Scale(1./3, r3.Add(r3.Add(v[0], v[1]), v[2]))
}

// SharedVertices counts the nodes common to triangles a and b.
func (m *Mesh) SharedVertices(a, b int) int {
	n := 0
	for _, i := range m.Triangles[a] {
		for _, j := range m.Triangles[b] {
			if i == j {
				n++
			}
		}
	}
	return n
}

// MaxEdgeLength returns the longest edge of the mesh.
func (m *Mesh) MaxEdgeLength() float64 {
	var l float64
	for _, e := range m.Edges {
		if d := r3.Norm(r3.Sub(m.Nodes[e[0]], m.Nodes[e[1]])); d > l {
			l = d
		}
	}
	return l
}
