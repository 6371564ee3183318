package ketama

import (
	"errors"
	"testing"
)

func TestStrategyPlaceUnplace(t *testing.T) {
	for _, test := range []struct {
		name     string
		strategy ServerHashStrategy
	}{
		{"chained", ChainedStrategy{}},
		{"suffix", SuffixStrategy{}},
		{"suffix-native", SuffixStrategy{Hash: Native{}}},
		{"md5", MD5Strategy{}},
	} {
		t.Run(test.name, func(t *testing.T) {
			var (
				c   Continuum
				foo = server("foo")
				bar = server("bar")
			)
			if err := test.strategy.Place(foo, &c, PointsPerServer); err != nil {
				t.Fatal(err)
			}
			if n := c.Len(); n != PointsPerServer {
				t.Fatalf("unexpected number of points: %d; want %d", n, PointsPerServer)
			}
			if err := test.strategy.Place(bar, &c, 7); err != nil {
				t.Fatal(err)
			}
			if err := test.strategy.Unplace(bar, &c, 7); err != nil {
				t.Fatal(err)
			}
			if n := c.Len(); n != PointsPerServer {
				t.Fatalf("unexpected number of points after unplace: %d; want %d", n, PointsPerServer)
			}
			if n := ownedPoints(&c, foo); n != PointsPerServer {
				t.Fatalf("unexpected number of foo points after unplace: %d; want %d", n, PointsPerServer)
			}
			if err := test.strategy.Unplace(foo, &c, PointsPerServer); err != nil {
				t.Fatal(err)
			}
			if n := c.Len(); n != 0 {
				t.Fatalf("unexpected points left: %d", n)
			}
		})
	}
}

func TestStrategyDeterministic(t *testing.T) {
	for _, strategy := range []ServerHashStrategy{
		ChainedStrategy{},
		SuffixStrategy{},
		MD5Strategy{},
	} {
		var c0, c1 Continuum
		if err := strategy.Place(server("foo"), &c0, 50); err != nil {
			t.Fatal(err)
		}
		if err := strategy.Place(server("foo"), &c1, 50); err != nil {
			t.Fatal(err)
		}
		var p0, p1 []uint32
		c0.Ascend(func(v uint32, _ Server) bool { p0 = append(p0, v); return true })
		c1.Ascend(func(v uint32, _ Server) bool { p1 = append(p1, v); return true })
		if len(p0) != len(p1) {
			t.Fatalf("%T: non deterministic placement", strategy)
		}
		for i := range p0 {
			if p0[i] != p1[i] {
				t.Fatalf("%T: non deterministic placement", strategy)
			}
		}
	}
}

func TestChainedStrategyPoints(t *testing.T) {
	var (
		c   Continuum
		foo = server("foo")
		h   FNV1a32
	)
	if err := (ChainedStrategy{}).Place(foo, &c, 3); err != nil {
		t.Fatal(err)
	}
	p0 := h.Hash([]byte("foo"))
	p1 := h.HashSeed([]byte("foo"), p0)
	p2 := h.HashSeed([]byte("foo"), p1)
	for _, v := range []uint32{p0, p1, p2} {
		if s, ok := c.Get(v); !ok || s != foo {
			t.Fatalf("no expected point %d on the continuum", v)
		}
	}
}

func TestSuffixStrategyPoints(t *testing.T) {
	var (
		c   Continuum
		foo = server("foo")
		h   FNV1a32
	)
	if err := (SuffixStrategy{}).Place(foo, &c, 12); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"foo-0", "foo-1", "foo-11"} {
		v := h.Hash([]byte(name))
		if s, ok := c.Get(v); !ok || s != foo {
			t.Fatalf("no expected point for %q on the continuum", name)
		}
	}
}

func TestMD5StrategyPoints(t *testing.T) {
	var (
		c Continuum
		s = MustServer("foo", "10.0.0.1", 11211)
	)
	// Five points need two digests.
	if err := (MD5Strategy{}).Place(s, &c, 5); err != nil {
		t.Fatal(err)
	}
	if n := c.Len(); n != 5 {
		t.Fatalf("unexpected number of points: %d", n)
	}
	// First point of each digest equals the libketama key hash.
	for _, key := range []string{"10.0.0.1:11211-0", "10.0.0.1:11211-1"} {
		v := (MD5{}).Hash([]byte(key))
		if x, ok := c.Get(v); !ok || x != s {
			t.Fatalf("no expected point for %q on the continuum", key)
		}
	}
}

func TestStrategyInvalidArgument(t *testing.T) {
	var c Continuum
	for _, test := range []struct {
		name string
		s    Server
		c    *Continuum
		n    int
	}{
		{"zero server", Server{}, &c, 1},
		{"nil continuum", server("foo"), nil, 1},
		{"zero points", server("foo"), &c, 0},
		{"negative points", server("foo"), &c, -1},
	} {
		t.Run(test.name, func(t *testing.T) {
			for _, strategy := range []ServerHashStrategy{
				ChainedStrategy{},
				SuffixStrategy{},
				MD5Strategy{},
			} {
				if err := strategy.Place(test.s, test.c, test.n); !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("%T: Place(): unexpected error: %v", strategy, err)
				}
				if err := strategy.Unplace(test.s, test.c, test.n); !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("%T: Unplace(): unexpected error: %v", strategy, err)
				}
			}
		})
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("continuum changed after invalid calls")
	}
}

func TestStrategyByName(t *testing.T) {
	for _, test := range []struct {
		name string
		err  error
	}{
		{"", nil},
		{"chained", nil},
		{"suffix", nil},
		{"md5", nil},
		{"random", ErrInvalidArgument},
	} {
		t.Run(test.name, func(t *testing.T) {
			s, err := StrategyByName(test.name, Native{})
			if !errors.Is(err, test.err) {
				t.Fatalf("unexpected error: %v; want %v", err, test.err)
			}
			if err == nil && s == nil {
				t.Fatalf("nil strategy")
			}
		})
	}
	s, _ := StrategyByName("suffix", Native{})
	if x := s.(SuffixStrategy); x.Hash != (Native{}) {
		t.Fatalf("unexpected suffix hash: %T", x.Hash)
	}
}

func TestContinuumCollision(t *testing.T) {
	var (
		foo = server("foo")
		bar = server("bar")
		n   int
	)
	c := Continuum{
		collide: func(v uint32, prev, next Server) {
			n++
			if v != 10 || prev != foo || next != bar {
				t.Errorf("unexpected collision: %d %s -> %s", v, prev, next)
			}
		},
	}
	c.Put(10, foo)
	c.Put(10, foo)
	if n != 0 {
		t.Fatalf("put of the same owner reported as collision")
	}
	c.Put(10, bar)
	if n != 1 {
		t.Fatalf("collision was not reported")
	}
	// Removal of the winner gives the point back to the previous owner.
	if !c.Remove(10, bar) {
		t.Fatalf("point was not removed by owner")
	}
	if s, ok := c.Get(10); !ok || s != foo {
		t.Fatalf("unexpected owner after removal: %s; want %s", s, foo)
	}
	c.Put(10, bar)
	// Removal of the shadowed owner keeps the winner.
	if !c.Remove(10, foo) {
		t.Fatalf("shadowed owner was not removed")
	}
	if s, ok := c.Get(10); !ok || s != bar {
		t.Fatalf("unexpected owner after removal: %s; want %s", s, bar)
	}
	if c.Remove(10, foo) {
		t.Fatalf("point removed twice")
	}
	if !c.Remove(10, bar) {
		t.Fatalf("point was not removed by owner")
	}
	if c.Len() != 0 {
		t.Fatalf("unexpected points left")
	}
}

func TestContinuumCollisionSnapshot(t *testing.T) {
	var (
		foo = server("foo")
		bar = server("bar")
		c0  Continuum
	)
	c0.Put(10, foo)
	c0.Put(10, bar)
	c1 := Continuum{tree: c0.tree}
	c1.Remove(10, bar)
	if s, _ := c0.Get(10); s != bar {
		t.Fatalf("snapshot changed after removal on its copy: %s", s)
	}
	if s, _ := c1.Get(10); s != foo {
		t.Fatalf("unexpected owner: %s; want %s", s, foo)
	}
}

func TestContinuumCeiling(t *testing.T) {
	var c Continuum
	if _, _, ok := c.Ceiling(0); ok {
		t.Fatalf("unexpected ceiling on empty continuum")
	}
	c.Put(10, server("a"))
	c.Put(20, server("b"))
	c.Put(4294967295, server("c"))
	for _, test := range []struct {
		h   uint32
		exp uint32
	}{
		{0, 10},
		{10, 10},
		{11, 20},
		{21, 4294967295},
		{4294967295, 4294967295},
	} {
		v, _, ok := c.Ceiling(test.h)
		if !ok || v != test.exp {
			t.Errorf("Ceiling(%d) = %d; want %d", test.h, v, test.exp)
		}
	}
	if v, _ := c.next(4294967295); v != 10 {
		t.Errorf("next(max) = %d; want 10", v)
	}
}
