package ketama

import "github.com/gobwas/avl"

// point represents a point on the ring owned by a server.
type point struct {
	val    uint64
	server Server

	// shadow holds previous owners of the point, taken over on collisions.
	// The last one is the most recent. It is never modified in place.
	shadow []Server
}

func (p point) Compare(x avl.Item) int {
	return compare(p.val, itemValue(x))
}

// search is a value used to find points on the tree.
type search uint64

func (s search) Compare(x avl.Item) int {
	return compare(uint64(s), itemValue(x))
}

func itemValue(x avl.Item) uint64 {
	switch v := x.(type) {
	case point:
		return v.val
	case search:
		return uint64(v)
	}
	panic("ketama: internal error: unexpected tree item")
}

func compare(x0, x1 uint64) int {
	if x0 < x1 {
		return -1
	}
	if x0 > x1 {
		return 1
	}
	return 0
}

// Continuum is an ordered mapping of 32-bit points to servers.
//
// Continuum is backed by an immutable tree, so copying a Continuum value is
// cheap and produces an independent snapshot: mutations of the copy are not
// visible through the original.
//
// Continuum is not goroutine safe. The zero value is an empty continuum.
type Continuum struct {
	tree avl.Tree // tree<point>

	// collide is called when Put() replaces a point owned by another server.
	collide func(v uint32, prev, next Server)
}

// Len returns number of points on the continuum.
func (c *Continuum) Len() int {
	return c.tree.Size()
}

// Put places server s at point v. If v is already owned by another server,
// s takes it over and the previous owner is kept in the point's shadow list.
func (c *Continuum) Put(v uint32, s Server) {
	p := point{val: uint64(v), server: s}
	tree, existing := c.tree.Insert(p)
	if existing == nil {
		c.tree = tree
		return
	}
	prev := existing.(point)
	if prev.server == s {
		return
	}
	p.shadow = appendServer(prev.shadow, prev.server)
	c.replace(prev, p)
	if c.collide != nil {
		c.collide(v, prev.server, s)
	}
}

// Remove deletes ownership of point v by server s. If s was the owner and
// the point has shadowed owners, the most recent of them owns the point
// again. It reports whether s had point v.
func (c *Continuum) Remove(v uint32, s Server) bool {
	x := c.tree.Search(search(v))
	if x == nil {
		return false
	}
	p := x.(point)
	if p.server == s {
		if len(p.shadow) == 0 {
			c.tree, _ = c.tree.Delete(x)
			return true
		}
		n := len(p.shadow) - 1
		c.replace(p, point{
			val:    p.val,
			server: p.shadow[n],
			shadow: p.shadow[:n:n],
		})
		return true
	}
	for i := len(p.shadow) - 1; i >= 0; i-- {
		if p.shadow[i] != s {
			continue
		}
		shadow := make([]Server, 0, len(p.shadow)-1)
		shadow = append(shadow, p.shadow[:i]...)
		shadow = append(shadow, p.shadow[i+1:]...)
		c.replace(p, point{
			val:    p.val,
			server: p.server,
			shadow: shadow,
		})
		return true
	}
	return false
}

// replace puts p instead of the prev point having the same value.
func (c *Continuum) replace(prev, p point) {
	tree, _ := c.tree.Delete(prev)
	c.tree, _ = tree.Insert(p)
}

func appendServer(ss []Server, s Server) []Server {
	ret := make([]Server, len(ss), len(ss)+1)
	copy(ret, ss)
	return append(ret, s)
}

// Get returns the owner of point v.
func (c *Continuum) Get(v uint32) (Server, bool) {
	x := c.tree.Search(search(v))
	if x == nil {
		return Server{}, false
	}
	return x.(point).server, true
}

// Ceiling returns the first point which is greater or equal to h, wrapping
// around to the smallest point when h is greater than every point.
// It returns false only when the continuum is empty.
func (c *Continuum) Ceiling(h uint32) (v uint32, s Server, ok bool) {
	x := c.ceiling(uint64(h))
	if x == nil {
		x = c.tree.Min()
	}
	if x == nil {
		return 0, Server{}, false
	}
	p := x.(point)
	return uint32(p.val), p.server, true
}

func (c *Continuum) ceiling(h uint64) avl.Item {
	if x := c.tree.Search(search(h)); x != nil {
		return x
	}
	return c.tree.Successor(search(h))
}

// next returns the point following v clockwise.
func (c *Continuum) next(v uint32) (uint32, Server) {
	x := c.ceiling(uint64(v) + 1)
	if x == nil {
		x = c.tree.Min()
	}
	p := x.(point)
	return uint32(p.val), p.server
}

// Ascend calls fn for every point and its current owner in ascending order
// until fn returns false.
func (c *Continuum) Ascend(fn func(v uint32, s Server) bool) {
	c.tree.InOrder(func(x avl.Item) bool {
		p := x.(point)
		return fn(uint32(p.val), p.server)
	})
}
