package basis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind selects the unknowns an operator is expressed in.
type Kind int

const (
	// RWG expands currents in the edge functions directly.
	RWG Kind = iota
	// LoopStar splits the same space into divergence free loops and
	// charge carrying stars.
	LoopStar
)

func (k Kind) String() string {
	switch k {
	case RWG:
		return "rwg"
	case LoopStar:
		return "loop_star"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts rwg and loop_star (or "loop star"). An empty string is
// RWG.
func ParseKind(s string) (Kind, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_") {
	case "", "rwg":
		return RWG, nil
	case "loop_star", "loopstar":
		return LoopStar, nil
	}
	return 0, fmt.Errorf("basis: unknown kind %q", s)
}

// LoopStarBasis is a change of unknowns on the RWG space. Column j of T
// holds the RWG coefficients of loop-star function j; the columns are the
// vertex loops, then the global loops around holes and handles, then the
// triangle stars.
type LoopStarBasis struct {
	Loops  int
	Global int
	Stars  int
	T      *mat.Dense
}

// Len is the number of functions, equal to the RWG count.
func (ls *LoopStarBasis) Len() int {
	_, c := ls.T.Dims()
	return c
}

// Solenoidal is the number of divergence free functions.
func (ls *LoopStarBasis) Solenoidal() int { return ls.Loops + ls.Global }

// Complex returns T with complex entries.
func (ls *LoopStarBasis) Complex() *mat.CDense {
	r, c := ls.T.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := ls.T.At(i, j); v != 0 {
				out.Set(i, j, complex(v, 0))
			}
		}
	}
	return out
}

// ToRWG maps loop-star coefficients to RWG coefficients.
func (ls *LoopStarBasis) ToRWG(x []complex128) ([]complex128, error) {
	r, c := ls.T.Dims()
	if len(x) != c {
		return nil, fmt.Errorf("basis: %d loop-star coefficients for %d functions", len(x), c)
	}
	out := make([]complex128, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := ls.T.At(i, j); v != 0 {
				out[i] += complex(v, 0) * x[j]
			}
		}
	}
	return out, nil
}

// NewLoopStar builds the loop-star functions of b. Every coefficient is
// sign / edge length, so each function carries unit current across the
// edges it uses.
func NewLoopStar(b *Basis) (*LoopStarBasis, error) {
	m := b.Mesh
	n := b.Len()
	length := make([]float64, n)
	for i, e := range b.Edges {
		length[i] = r3.Norm(r3.Sub(m.Nodes[m.Edges[e][0]], m.Nodes[m.Edges[e][1]]))
	}
	comp, closed := components(b)

	loops := vertexLoops(b, length, comp, closed)
	stars := triangleStars(b, length, comp)
	global, err := globalLoops(b, loops)
	if err != nil {
		return nil, err
	}
	if got := len(loops) + len(global) + len(stars); got != n {
		return nil, fmt.Errorf("basis: loop-star split gives %d functions (%d loops, %d global, %d stars) for %d edges",
			got, len(loops), len(global), len(stars), n)
	}
	t := mat.NewDense(n, n, nil)
	j := 0
	for _, set := range [][][]float64{loops, global, stars} {
		for _, col := range set {
			t.SetCol(j, col)
			j++
		}
	}
	return &LoopStarBasis{Loops: len(loops), Global: len(global), Stars: len(stars), T: t}, nil
}

// components labels the triangles connected through basis functions and
// reports which components have no boundary edge.
func components(b *Basis) ([]int, []bool) {
	m := b.Mesh
	parent := make([]int, len(m.Triangles))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := range b.Edges {
		a, c := find(b.Plus[i].Triangle), find(b.Minus[i].Triangle)
		if a != c {
			parent[c] = a
		}
	}
	label := make(map[int]int)
	comp := make([]int, len(m.Triangles))
	for t := range comp {
		r := find(t)
		if _, ok := label[r]; !ok {
			label[r] = len(label)
		}
		comp[t] = label[r]
	}
	closed := make([]bool, len(label))
	for i := range closed {
		closed[i] = true
	}
	for _, faces := range m.EdgeFaces {
		if len(faces) != 2 {
			for _, f := range faces {
				closed[comp[f.Triangle]] = false
			}
		}
	}
	return comp, closed
}

// vertexLoops circulates around every interior vertex. The sign of each
// edge follows from zero net divergence on every triangle of the fan. One
// loop per closed component is dropped, the loops of a closed surface sum
// to zero.
func vertexLoops(b *Basis, length []float64, comp []int, closed []bool) [][]float64 {
	m := b.Mesh
	edgeCount := make([]int, len(m.Nodes))
	for _, e := range m.Edges {
		edgeCount[e[0]]++
		edgeCount[e[1]]++
	}
	incident := make([][]int, len(m.Nodes))
	for i, e := range b.Edges {
		for _, v := range m.Edges[e] {
			incident[v] = append(incident[v], i)
		}
	}
	sigma := func(i, t int) float64 {
		if b.Plus[i].Triangle == t {
			return 1
		}
		return -1
	}
	var loops [][]float64
	dropped := make(map[int]bool)
	for v := range m.Nodes {
		fan := incident[v]
		if len(fan) == 0 || len(fan) != edgeCount[v] {
			continue
		}
		sign := map[int]float64{fan[0]: 1}
		queue := []int{fan[0]}
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			for _, h := range b.Halves(i) {
				tri := m.Triangles[h.Triangle]
				for _, f := range b.Faces[h.Triangle] {
					if f.Function == i || tri[f.Vertex] == v {
						continue
					}
					if _, ok := sign[f.Function]; !ok {
						sign[f.Function] = -sign[i] * sigma(i, h.Triangle) * sigma(f.Function, h.Triangle)
						queue = append(queue, f.Function)
					}
				}
			}
		}
		if len(sign) != len(fan) {
			continue
		}
		c := comp[b.Plus[fan[0]].Triangle]
		if closed[c] && !dropped[c] {
			dropped[c] = true
			continue
		}
		col := make([]float64, b.Len())
		for i, s := range sign {
			col[i] = s / length[i]
		}
		loops = append(loops, col)
	}
	return loops
}

// triangleStars sends unit current out of each triangle through its
// interior edges. The stars of a component sum to zero, so its first
// triangle has none.
func triangleStars(b *Basis, length []float64, comp []int) [][]float64 {
	var stars [][]float64
	seen := make(map[int]bool)
	for t, faces := range b.Faces {
		if len(faces) == 0 {
			continue
		}
		if !seen[comp[t]] {
			seen[comp[t]] = true
			continue
		}
		col := make([]float64, b.Len())
		for _, f := range faces {
			col[f.Function] = math.Copysign(1, f.Divergence) / length[f.Function]
		}
		stars = append(stars, col)
	}
	return stars
}

// globalLoops completes the divergence free space: vectors with zero charge
// on every triangle that are orthogonal to the vertex loops.
func globalLoops(b *Basis, loops [][]float64) ([][]float64, error) {
	n := b.Len()
	d := b.ScalarTransform()
	_, f := d.Dims()
	a := mat.NewDense(f+len(loops), n, nil)
	a.Slice(0, f, 0, n).(*mat.Dense).Copy(d.T())
	for k, col := range loops {
		a.SetRow(f+k, col)
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, fmt.Errorf("basis: SVD of the loop constraints failed")
	}
	values := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)
	tol := 1e-9
	if len(values) > 0 {
		tol *= values[0]
	}
	var global [][]float64
	for j := 0; j < n; j++ {
		if j < len(values) && values[j] > tol {
			continue
		}
		global = append(global, mat.Col(nil, j, &v))
	}
	return global, nil
}
