package parts

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPart is returned when a part is not covered by a Layout.
	ErrUnknownPart = errors.New("parts: part not in layout")
	// ErrLayout reports inconsistent layout dimensions.
	ErrLayout = errors.New("parts: invalid layout")
)

// Layout maps each part to a contiguous index range of a global vector.
//
//	Layout: [Part 0 unknowns][Part 1 unknowns]...[Part N-1 unknowns]
type Layout struct {
	Parts []*Part
	// Offsets has len(Parts)+1 entries; part i owns [Offsets[i], Offsets[i+1]).
	Offsets []int
	index   map[*Part]int
}

// NewLayout builds a layout from per-part sizes.
func NewLayout(ps []*Part, sizes []int) (*Layout, error) {
	if len(ps) != len(sizes) {
		return nil, fmt.Errorf("%w: %d parts but %d sizes", ErrLayout, len(ps), len(sizes))
	}
	l := &Layout{
		Parts:   ps,
		Offsets: make([]int, len(ps)+1),
		index:   make(map[*Part]int, len(ps)),
	}
	for i, p := range ps {
		if _, dup := l.index[p]; dup {
			return nil, fmt.Errorf("%w: part %d listed twice", ErrLayout, i)
		}
		if sizes[i] < 0 {
			return nil, fmt.Errorf("%w: negative size %d for part %d", ErrLayout, sizes[i], i)
		}
		l.index[p] = i
		l.Offsets[i+1] = l.Offsets[i] + sizes[i]
	}
	return l, nil
}

// Len is the total number of unknowns.
func (l *Layout) Len() int { return l.Offsets[len(l.Offsets)-1] }

// Index returns the position of p in the layout.
func (l *Layout) Index(p *Part) (int, bool) {
	i, ok := l.index[p]
	return i, ok
}

// Range returns the half open index range owned by p.
func (l *Layout) Range(p *Part) (start, end int, err error) {
	i, ok := l.index[p]
	if !ok {
		return 0, 0, ErrUnknownPart
	}
	return l.Offsets[i], l.Offsets[i+1], nil
}

// Vector is a global coefficient vector partitioned by a Layout.
type Vector struct {
	Layout *Layout
	Data   []complex128
}

// NewVector allocates a zero vector over l.
func NewVector(l *Layout) *Vector {
	return &Vector{Layout: l, Data: make([]complex128, l.Len())}
}

// Part returns the slice of v owned by p. The slice aliases v.Data.
func (v *Vector) Part(p *Part) ([]complex128, error) {
	start, end, err := v.Layout.Range(p)
	if err != nil {
		return nil, err
	}
	return v.Data[start:end:end], nil
}

// Set copies data into the range owned by p.
func (v *Vector) Set(p *Part, data []complex128) error {
	dst, err := v.Part(p)
	if err != nil {
		return err
	}
	if len(dst) != len(data) {
		return fmt.Errorf("%w: part has %d unknowns, got %d", ErrLayout, len(dst), len(data))
	}
	copy(dst, data)
	return nil
}
