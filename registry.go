package ketama

import (
	"sort"
	"sync"
)

// Registry holds named rings. It is meant to be created and owned by the
// application wiring; there is no global registry.
// The zero value for Registry is an empty registry ready to use.
type Registry struct {
	mu    sync.Mutex
	rings map[string]*Ring
}

// Get returns ring registered under given name.
func (g *Registry) Get(name string) (*Ring, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rings[name]
	return r, ok
}

// GetOrCreate returns ring registered under given name. If there is no such
// ring, it creates one with given options and registers it.
func (g *Registry) GetOrCreate(name string, opts ...Option) *Ring {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rings[name]; ok {
		return r
	}
	r := New(opts...)
	g.put(name, r)
	return r
}

// Put registers ring r under given name, replacing previous one (if any).
func (g *Registry) Put(name string, r *Ring) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.put(name, r)
}

func (g *Registry) put(name string, r *Ring) {
	if g.rings == nil {
		g.rings = make(map[string]*Ring)
	}
	g.rings[name] = r
}

// Delete unregisters ring with given name.
// It reports whether such ring was registered.
func (g *Registry) Delete(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.rings[name]
	delete(g.rings, name)
	return ok
}

// Names returns sorted names of registered rings.
func (g *Registry) Names() []string {
	g.mu.Lock()
	names := make([]string, 0, len(g.rings))
	for name := range g.rings {
		names = append(names, name)
	}
	g.mu.Unlock()

	sort.Strings(names)
	return names
}
