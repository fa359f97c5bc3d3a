// Package meshtest provides small analytic surface meshes for tests.
package meshtest

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/mesh"
)

// SquareRing returns a flat square annulus in the z=0 plane, centred on the
// origin, with outer and inner half widths. Each side is split into nSide
// segments and the ring width into nLayer strips. Normals point along +z and
// the triangulation is invariant under 90 degree rotation about z.
func SquareRing(outer, inner float64, nSide, nLayer int) (*mesh.Mesh, error) {
	nPerim := 4 * nSide
	var nodes []r3.Vec
	for j := 0; j <= nLayer; j++ {
		w := inner + (outer-inner)*float64(j)/float64(nLayer)
		for k := 0; k < nPerim; k++ {
			nodes = append(nodes, perimeter(w, k, nSide))
		}
	}
	idx := func(j, k int) int { return j*nPerim + k%nPerim }
	var tris [][3]int
	for j := 0; j < nLayer; j++ {
		for k := 0; k < nPerim; k++ {
			a, b, c, d := idx(j, k), idx(j+1, k), idx(j+1, k+1), idx(j, k+1)
			tris = append(tris, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return mesh.New(nodes, tris)
}

// perimeter walks a square of half width w counter clockwise starting from
// the corner (w, -w).
func perimeter(w float64, k, nSide int) r3.Vec {
	t := float64(k%nSide) / float64(nSide)
	switch k / nSide {
	case 0:
		return r3.Vec{X: w, Y: -w + 2*w*t}
	case 1:
		return r3.Vec{X: w - 2*w*t, Y: w}
	case 2:
		return r3.Vec{X: -w, Y: w - 2*w*t}
	default:
		return r3.Vec{X: -w + 2*w*t, Y: -w}
	}
}

// Plate returns a square plate of half width w in the z=0 plane split into
// n x n cells.
func Plate(w float64, n int) (*mesh.Mesh, error) {
	var nodes []r3.Vec
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			nodes = append(nodes, r3.Vec{
				X: -w + 2*w*float64(i)/float64(n),
				Y: -w + 2*w*float64(j)/float64(n),
			})
		}
	}
	idx := func(i, j int) int { return j*(n+1) + i }
	var tris [][3]int
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			tris = append(tris,
				[3]int{idx(i, j), idx(i+1, j), idx(i+1, j+1)},
				[3]int{idx(i, j), idx(i+1, j+1), idx(i, j+1)})
		}
	}
	return mesh.New(nodes, tris)
}

// Sphere returns a closed sphere of the given radius made by repeatedly
// subdividing an octahedron. Normals point outwards.
func Sphere(radius float64, subdivisions int) (*mesh.Mesh, error) {
	nodes := []r3.Vec{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	var tris [][3]int
	for _, sx := range []int{0, 1} {
		for _, sy := range []int{2, 3} {
			for _, sz := range []int{4, 5} {
				tri := [3]int{sx, sy, sz}
				// an odd number of negative axes flips the winding
				if (sx+sy+sz)%2 == 1 {
					tri[1], tri[2] = tri[2], tri[1]
				}
				tris = append(tris, tri)
			}
		}
	}
	for s := 0; s < subdivisions; s++ {
		mid := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			key := [2]int{min(a, b), max(a, b)}
			if i, ok := mid[key]; ok {
				return i
			}
			nodes = append(nodes, r3.Unit(r3.Add(nodes[a], nodes[b])))
			mid[key] = len(nodes) - 1
			return len(nodes) - 1
		}
		next := make([][3]int, 0, 4*len(tris))
		for _, t := range tris {
			ab, bc, ca := midpoint(t[0], t[1]), midpoint(t[1], t[2]), midpoint(t[2], t[0])
			next = append(next,
				[3]int{t[0], ab, ca},
				[3]int{ab, t[1], bc},
				[3]int{ca, bc, t[2]},
				[3]int{ab, bc, ca})
		}
		tris = next
	}
	for i := range nodes {
		nodes[i] = r3.Scale(radius, nodes[i])
	}
	return mesh.New(nodes, tris)
}
