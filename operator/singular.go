package operator

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/gomodes/element"
)

// singularTerm holds the frequency independent integrals of R^(2t-1) over a
// triangle pair, in the local frames of the two triangle centres.
type singularTerm struct {
	vec [3][3]float64 // ∫∫ (r - v_k)·(r' - v_l) R^(2t-1)
	sca float64       // ∫∫ R^(2t-1)
}

// singularTable covers every pair of triangles of one mesh that share a
// vertex, keyed by (m, n) with m <= n.
type singularTable struct {
	pairs map[[2]int][]singularTerm
}

// lookup returns the terms of pair (m, n) and whether they are stored
// transposed.
func (st *singularTable) lookup(m, n int) ([]singularTerm, bool, bool) {
	if m <= n {
		terms, ok := st.pairs[[2]int{m, n}]
		return terms, false, ok
	}
	terms, ok := st.pairs[[2]int{n, m}]
	return terms, true, ok
}

// singularCache computes each mesh's table once. Rigid placement does not
// change the integrals, so parts sharing a mesh share a table.
type singularCache struct {
	terms    int
	accuracy float64
	maxOrder int

	mu     sync.RWMutex
	tables map[uuid.UUID]*singularTable
	group  singleflight.Group
}

func newSingularCache(terms int, accuracy float64) *singularCache {
	return &singularCache{
		terms:    terms,
		accuracy: accuracy,
		maxOrder: 64,
		tables:   make(map[uuid.UUID]*singularTable),
	}
}

func (c *singularCache) get(g *geometry) *singularTable {
	id := g.part.Mesh.ID
	c.mu.RLock()
	st, ok := c.tables[id]
	c.mu.RUnlock()
	if ok {
		return st
	}
	v, _, _ := c.group.Do(id.String(), func() (interface{}, error) {
		c.mu.RLock()
		st, ok := c.tables[id]
		c.mu.RUnlock()
		if ok {
			return st, nil
		}
		st = c.compute(g)
		c.mu.Lock()
		c.tables[id] = st
		c.mu.Unlock()
		return st, nil
	})
	return v.(*singularTable)
}

func (c *singularCache) compute(g *geometry) *singularTable {
	st := &singularTable{pairs: make(map[[2]int][]singularTerm)}
	m := g.part.Mesh
	byNode := make(map[int][]int)
	for t, tri := range m.Triangles {
		for _, n := range tri {
			byNode[n] = append(byNode[n], t)
		}
	}
	for t, tri := range m.Triangles {
		seen := make(map[int]bool)
		for _, node := range tri {
			for _, s := range byNode[node] {
				if s < t || seen[s] {
					continue
				}
				seen[s] = true
				terms := c.pair(g, t, s)
				if s == t {
					symmetrise(terms)
				}
				st.pairs[[2]int{t, s}] = terms
			}
		}
	}
	return st
}

// symmetrise averages the vector integrals of a triangle with itself over
// k and l. The pair rule treats observer and source differently, so the raw
// table of a diagonal pair is only symmetric to quadrature accuracy.
func symmetrise(terms []singularTerm) {
	for i := range terms {
		v := &terms[i].vec
		for k := 0; k < 3; k++ {
			for l := k + 1; l < 3; l++ {
				avg := (v[k][l] + v[l][k]) / 2
				v[k][l], v[l][k] = avg, avg
			}
		}
	}
}

// pair integrates R^(2t-1) over triangles (m, n) with the regular rule on m
// and a refined polar rule on n.
func (c *singularCache) pair(g *geometry, m, n int) []singularTerm {
	out := make([]singularTerm, c.terms)
	vo, vs := g.local(m), g.local(n)
	j0 := make([]float64, c.terms)
	j1 := make([]r3.Vec, c.terms)
	for q, r := range g.points[m] {
		w := g.weights[q] * g.areas[m]
		c.inner(g, r, n, j0, j1)
		ro := r3.Sub(r, g.centres[m])
		for t := 0; t < c.terms; t++ {
			out[t].sca += w * j0[t]
			for k := 0; k < 3; k++ {
				a := r3.Sub(ro, vo[k])
				for l := 0; l < 3; l++ {
					out[t].vec[k][l] += w * r3.Dot(a, r3.Sub(j1[t], r3.Scale(j0[t], vs[l])))
				}
			}
		}
	}
	return out
}

// inner evaluates ∫ R^(2t-1) dS' and ∫ (r' - c_n) R^(2t-1) dS' over
// triangle n, doubling the polar rule until the relative change drops below
// the accuracy target.
func (c *singularCache) inner(g *geometry, r r3.Vec, n int, j0 []float64, j1 []r3.Vec) {
	prev := make([]float64, len(j0))
	var pts []weightedPoint
	for order := 4; ; order *= 2 {
		x, w := element.LineRule(order, 0, 1)
		pts = duffy(pts[:0], r, g.verts[n], g.normals[n], x, w)
		for t := range j0 {
			j0[t], j1[t] = 0, r3.Vec{}
		}
		for _, p := range pts {
			rr := r3.Norm(r3.Sub(r, p.p))
			rel := r3.Sub(p.p, g.centres[n])
			f := p.w / rr // R^-1
			for t := range j0 {
				j0[t] += f
				j1[t] = r3.Add(j1[t], r3.Scale(f, rel))
				f *= rr * rr
			}
		}
		converged := order > 4
		for t := range j0 {
			if math.Abs(j0[t]-prev[t]) > c.accuracy*math.Abs(j0[t]) {
				converged = false
			}
			prev[t] = j0[t]
		}
		if converged || order >= c.maxOrder {
			return
		}
	}
}
