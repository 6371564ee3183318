package ketama

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fixedStrategy places servers at points given by their names.
type fixedStrategy map[string][]uint32

func (f fixedStrategy) Place(s Server, c *Continuum, n int) error {
	if err := checkPlacement(s, c, n); err != nil {
		return err
	}
	for _, v := range f[s.Name()] {
		c.Put(v, s)
	}
	return nil
}

func (f fixedStrategy) Unplace(s Server, c *Continuum, n int) error {
	if err := checkPlacement(s, c, n); err != nil {
		return err
	}
	for _, v := range f[s.Name()] {
		c.Remove(v, s)
	}
	return nil
}

// numericHash treats keys as decimal numbers, so tests may choose key points
// explicitly.
var numericHash = HashFunc(func(p []byte) uint32 {
	n, err := strconv.ParseUint(string(p), 10, 32)
	if err != nil {
		panic(fmt.Sprintf("numeric hash: bad key %q: %v", p, err))
	}
	return uint32(n)
})

// clock is a fake clock which moves one second forward on each call.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func server(name string) Server {
	return MustServer(name, name+".local", 1234)
}

func servers(names ...string) []Server {
	ret := make([]Server, len(names))
	for i, name := range names {
		ret[i] = server(name)
	}
	return ret
}

func makeRing(t testing.TB, names ...string) *Ring {
	t.Helper()
	r := New(WithClock(newClock().Now))
	if err := r.Add(servers(names...)...); err != nil {
		t.Fatal(err)
	}
	return r
}

func mustLookup(t testing.TB, r *Ring, key string) Server {
	t.Helper()
	s, err := r.Lookup(key)
	if err != nil {
		t.Fatalf("lookup %q: unexpected error: %v", key, err)
	}
	return s
}

func ownedPoints(c *Continuum, s Server) (n int) {
	c.Ascend(func(_ uint32, x Server) bool {
		if x == s {
			n++
		}
		return true
	})
	return n
}

func assertMembers(t testing.TB, r *Ring, exp ...Server) {
	t.Helper()
	act := r.Members()
	sortServers(exp)
	if len(act) != len(exp) {
		t.Fatalf("unexpected members: %v; want %v", act, exp)
	}
	for i := range act {
		if act[i] != exp[i] {
			t.Fatalf("unexpected members: %v; want %v", act, exp)
		}
	}
}
