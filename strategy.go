package ketama

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"strconv"
)

// ServerHashStrategy places server points on a continuum.
//
// Strategies are pure functions of server identity: Unplace() recomputes
// exactly the points Place() produced for the same server and number of
// points.
type ServerHashStrategy interface {
	// Place puts n points of server s on continuum c.
	Place(s Server, c *Continuum, n int) error
	// Unplace removes n points of server s from continuum c.
	Unplace(s Server, c *Continuum, n int) error
}

// ChainedStrategy places the first point at Hash(name) and every next point
// at Hash(name) seeded with the previous point.
// The zero value uses FNV1a32 and is the default strategy.
type ChainedStrategy struct {
	Hash SeededHashFunction
}

func (c ChainedStrategy) Place(s Server, cont *Continuum, n int) error {
	return c.each(s, cont, n, func(v uint32) {
		cont.Put(v, s)
	})
}

func (c ChainedStrategy) Unplace(s Server, cont *Continuum, n int) error {
	return c.each(s, cont, n, func(v uint32) {
		cont.Remove(v, s)
	})
}

func (c ChainedStrategy) each(s Server, cont *Continuum, n int, fn func(uint32)) error {
	if err := checkPlacement(s, cont, n); err != nil {
		return err
	}
	h := c.Hash
	if h == nil {
		h = FNV1a32{}
	}
	name := []byte(s.name)
	v := h.Hash(name)
	fn(v)
	for i := 1; i < n; i++ {
		v = h.HashSeed(name, v)
		fn(v)
	}
	return nil
}

// SuffixStrategy places i-th point at Hash(name + "-" + i).
// Nil Hash means FNV1a32.
type SuffixStrategy struct {
	Hash HashFunction
}

func (x SuffixStrategy) Place(s Server, c *Continuum, n int) error {
	return x.each(s, c, n, func(v uint32) {
		c.Put(v, s)
	})
}

func (x SuffixStrategy) Unplace(s Server, c *Continuum, n int) error {
	return x.each(s, c, n, func(v uint32) {
		c.Remove(v, s)
	})
}

func (x SuffixStrategy) each(s Server, c *Continuum, n int, fn func(uint32)) error {
	if err := checkPlacement(s, c, n); err != nil {
		return err
	}
	h := x.Hash
	if h == nil {
		h = FNV1a32{}
	}
	buf := make([]byte, 0, len(s.name)+8)
	for i := 0; i < n; i++ {
		buf = append(buf[:0], s.name...)
		buf = append(buf, '-')
		buf = strconv.AppendInt(buf, int64(i), 10)
		fn(h.Hash(buf))
	}
	return nil
}

// MD5Strategy is the libketama placement: digest md5(addr + "-" + j) gives
// four points, read as little-endian integers.
type MD5Strategy struct{}

func (MD5Strategy) Place(s Server, c *Continuum, n int) error {
	return md5Points(s, c, n, func(v uint32) {
		c.Put(v, s)
	})
}

func (MD5Strategy) Unplace(s Server, c *Continuum, n int) error {
	return md5Points(s, c, n, func(v uint32) {
		c.Remove(v, s)
	})
}

func md5Points(s Server, c *Continuum, n int, fn func(uint32)) error {
	if err := checkPlacement(s, c, n); err != nil {
		return err
	}
	addr := s.Addr()
	buf := make([]byte, 0, len(addr)+8)
	for j, i := 0, 0; i < n; j++ {
		buf = append(buf[:0], addr...)
		buf = append(buf, '-')
		buf = strconv.AppendInt(buf, int64(j), 10)
		d := md5.Sum(buf)
		for k := 0; k < 4 && i < n; k, i = k+1, i+1 {
			fn(binary.LittleEndian.Uint32(d[k*4:]))
		}
	}
	return nil
}

func checkPlacement(s Server, c *Continuum, n int) error {
	if err := s.valid(); err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("ketama: continuum cannot be nil: %w", ErrInvalidArgument)
	}
	if n <= 0 {
		return fmt.Errorf("ketama: number of points must be greater than zero: %w", ErrInvalidArgument)
	}
	return nil
}

// StrategyByName returns placement strategy registered under given name.
// Known names are "chained", "suffix" and "md5". The hash function is used by
// the "suffix" strategy only; nil means FNV1a32.
func StrategyByName(name string, h HashFunction) (ServerHashStrategy, error) {
	switch name {
	case "", "chained":
		return ChainedStrategy{}, nil
	case "suffix":
		return SuffixStrategy{Hash: h}, nil
	case "md5":
		return MD5Strategy{}, nil
	default:
		return nil, fmt.Errorf("ketama: unknown placement strategy %q: %w", name, ErrInvalidArgument)
	}
}
