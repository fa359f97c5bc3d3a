package eig

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/notargets/gomodes/material"
)

// Key identifies a mode search. Placement does not change a part's modes in
// a homogeneous background, so parts sharing a mesh and an equal material
// value share results. Two materials with one label but different
// parameters are different keys.
type Key struct {
	Mesh     uuid.UUID
	Material material.Material
	NumModes int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%#v/%d", k.Mesh, k.Material, k.NumModes)
}

// Cacheable reports whether m can be part of a Key. Material types holding
// slices, maps or funcs are not comparable.
func Cacheable(m material.Material) bool {
	return m != nil && reflect.TypeOf(m).Comparable()
}

// Cache memoises mode searches. Concurrent requests for one key run the
// computation once; failures are not stored.
type Cache struct {
	mu    sync.RWMutex
	modes map[Key][]Mode
	group singleflight.Group
}

func NewCache() *Cache {
	return &Cache{modes: make(map[Key][]Mode)}
}

// Get returns the cached modes for key, calling compute on a miss. The
// returned slice is shared and must not be modified.
func (c *Cache) Get(key Key, compute func() ([]Mode, error)) ([]Mode, error) {
	if modes, ok := c.lookup(key); ok {
		return modes, nil
	}
	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		if modes, ok := c.lookup(key); ok {
			return modes, nil
		}
		modes, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.modes[key] = modes
		c.mu.Unlock()
		return modes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Mode), nil
}

func (c *Cache) lookup(key Key) ([]Mode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	modes, ok := c.modes[key]
	return modes, ok
}

// Len is the number of stored searches.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modes)
}

// Reset drops every stored search.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.modes = make(map[Key][]Mode)
	c.mu.Unlock()
}
