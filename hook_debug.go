//go:build ketama_debug
// +build ketama_debug

package ketama

import (
	"fmt"

	"github.com/gobwas/avl"
)

const debug = true

// assertConsistent panics if continuum c and members are out of sync: every
// point and its shadowed owners must belong to members and no member may have more points than its
// weight allows. A member may have fewer points, down to zero, since its
// points may be taken over on collisions.
func assertConsistent(r *Ring, c *Continuum, members map[Server]int) {
	count := make(map[Server]int, len(members))
	c.tree.InOrder(func(x avl.Item) bool {
		p := x.(point)
		for _, s := range append(p.shadow[:len(p.shadow):len(p.shadow)], p.server) {
			if _, has := members[s]; !has {
				panic(fmt.Sprintf(
					"ketama: internal error: point %d belongs to non-member %s",
					p.val, s,
				))
			}
		}
		count[p.server]++
		return true
	})
	for s, w := range members {
		if n, max := count[s], r.pointsPerServer()*w; n > max {
			panic(fmt.Sprintf(
				"ketama: internal error: member %s has %d points; want at most %d",
				s, n, max,
			))
		}
	}
}
