package ketama

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// PointsPerServer is the default number of points placed on the ring for a
// server of weight 1.
const PointsPerServer = 160

// MaxServerPoints is the maximum number of points a single server may have,
// that is, the maximum product of points per server and server weight.
const MaxServerPoints = 1 << 24

var (
	// ErrInvalidArgument is returned (wrapped) when an operation receives an
	// argument it can not work with: a blank server, non-positive number of
	// points or weight, or a nil target set.
	ErrInvalidArgument = errors.New("ketama: invalid argument")

	// ErrEmptyRing is returned on lookup when the ring has no servers.
	ErrEmptyRing = errors.New("ketama: ring is empty")
)

// Ring is a ketama consistent hashing ring.
//
// It is goroutine safe: mutations are serialized and lookups always observe a
// consistent snapshot of the ring. Still, membership is expected to be driven
// by a single writer, such as a configuration refresh loop; concurrent writers
// get no ordering guarantees between each other.
//
// Ring instances must not be copied; use Clone() instead. The zero value for
// Ring is an empty ring using FNV1a32 for keys and ChainedStrategy for
// servers. Exported fields must not be changed after the first use.
type Ring struct {
	// KeyHash is an optional hash function used to map keys on the ring.
	// If nil, FNV1a32 is used.
	KeyHash HashFunction

	// Strategy is an optional strategy used to place servers on the ring.
	// If nil, ChainedStrategy with FNV1a32 is used.
	Strategy ServerHashStrategy

	// PointsPerServer is an optional number of points placed on the ring per
	// unit of server weight. If zero, the PointsPerServer constant is used.
	// Negative values and values above MaxServerPoints make every mutation
	// fail with ErrInvalidArgument.
	PointsPerServer int

	// Trace holds optional ring event callbacks.
	Trace Trace

	// Now is an optional function returning current time. It's used to mark
	// modification time of the ring. If nil, time.Now is used.
	Now func() time.Time

	// mu serializes write operations on the ring.
	mu sync.Mutex

	// ringMu guards publication of a new ring state.
	// Its read-end should be held while reading the fields below; its
	// write-end should be held while replacing them. Writers must hold r.mu
	// as well.
	ringMu   sync.RWMutex
	cont     Continuum
	members  map[Server]int // server -> weight; replaced on every change.
	modified time.Time
	version  int
}

// Option configures a Ring created by New.
type Option func(*Ring)

// WithKeyHash sets the hash function used for keys.
func WithKeyHash(h HashFunction) Option {
	return func(r *Ring) { r.KeyHash = h }
}

// WithStrategy sets the server placement strategy.
func WithStrategy(s ServerHashStrategy) Option {
	return func(r *Ring) { r.Strategy = s }
}

// WithPointsPerServer sets the number of points per unit of server weight.
func WithPointsPerServer(n int) Option {
	return func(r *Ring) { r.PointsPerServer = n }
}

// WithTrace composes t with the ring's trace.
func WithTrace(t Trace) Option {
	return func(r *Ring) { r.Trace = r.Trace.Compose(t) }
}

// WithClock sets the function used to get modification time.
func WithClock(now func() time.Time) Option {
	return func(r *Ring) { r.Now = now }
}

// New creates an empty ring configured with given options.
func New(opts ...Option) *Ring {
	r := new(Ring)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add puts given servers on the ring with weight 1.
// Servers already present on the ring are left untouched.
// If any of servers is invalid, Add returns error and changes nothing.
func (r *Ring) Add(servers ...Server) error {
	if err := r.checkPoints(); err != nil {
		return err
	}
	if err := validServers(servers); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := r.begin()
	for _, s := range servers {
		tx.add(s, 1)
	}
	r.commit(tx)

	return nil
}

// AddWeighted puts server s on the ring with given weight, that is, with
// weight times more points than a server of weight 1.
// It is a no-op if s is already present on the ring.
func (r *Ring) AddWeighted(s Server, weight int) error {
	if err := r.checkPoints(); err != nil {
		return err
	}
	if err := s.valid(); err != nil {
		return err
	}
	if err := r.checkWeight(s, weight); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := r.begin()
	tx.add(s, weight)
	r.commit(tx)

	return nil
}

// Remove removes given servers from the ring.
// Servers not present on the ring are ignored.
func (r *Ring) Remove(servers ...Server) error {
	if err := r.checkPoints(); err != nil {
		return err
	}
	if err := validServers(servers); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := r.begin()
	for _, s := range servers {
		tx.remove(s)
	}
	r.commit(tx)

	return nil
}

// Synchronize makes the ring contain exactly the given servers: servers not
// present on the ring are added with weight 1, servers not present in target
// are removed. Servers present in both are untouched.
// Nil target is an error; an empty non-nil target removes every server.
func (r *Ring) Synchronize(target []Server) error {
	if target == nil {
		return fmt.Errorf("ketama: synchronize target cannot be nil: %w", ErrInvalidArgument)
	}
	if err := validServers(target); err != nil {
		return err
	}
	m := make(map[Server]int, len(target))
	for _, s := range target {
		m[s] = 1
	}
	return r.synchronize(m, false)
}

// SynchronizeWeighted is like Synchronize but also sets servers weights.
// Servers present in both the ring and target with different weights are
// placed again with the new weight.
func (r *Ring) SynchronizeWeighted(target map[Server]int) error {
	if target == nil {
		return fmt.Errorf("ketama: synchronize target cannot be nil: %w", ErrInvalidArgument)
	}
	for s, w := range target {
		if err := s.valid(); err != nil {
			return err
		}
		if err := r.checkWeight(s, w); err != nil {
			return err
		}
	}
	return r.synchronize(target, true)
}

func (r *Ring) synchronize(target map[Server]int, reweight bool) error {
	if err := r.checkPoints(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := r.begin()

	var add, del []Server
	for s, w := range target {
		prev, has := tx.members[s]
		switch {
		case !has:
			add = append(add, s)
		case reweight && prev != w:
			del = append(del, s)
			add = append(add, s)
		}
	}
	for s := range tx.members {
		if _, has := target[s]; !has {
			del = append(del, s)
		}
	}
	// Make collisions resolution independent of map iteration order.
	sortServers(add)
	sortServers(del)

	for _, s := range del {
		tx.remove(s)
	}
	for _, s := range add {
		tx.add(s, target[s])
	}
	r.commit(tx)
	r.Trace.onSynchronize(len(add), len(del))

	return nil
}

// Contains reports whether server s is present on the ring.
func (r *Ring) Contains(s Server) bool {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()
	_, has := r.members[s]
	return has
}

// Weight returns weight of server s or zero if s is not present.
func (r *Ring) Weight(s Server) int {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()
	return r.members[s]
}

// Size returns number of servers on the ring.
func (r *Ring) Size() int {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()
	return len(r.members)
}

// Points returns number of points on the ring.
func (r *Ring) Points() int {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()
	return r.cont.Len()
}

// Members returns servers present on the ring ordered by name, host and port.
// The returned slice is owned by the caller.
func (r *Ring) Members() []Server {
	r.ringMu.RLock()
	ret := make([]Server, 0, len(r.members))
	for s := range r.members {
		ret = append(ret, s)
	}
	r.ringMu.RUnlock()

	sortServers(ret)
	return ret
}

// LastModified returns time of the last membership change.
// It returns zero time if the ring was never changed.
func (r *Ring) LastModified() time.Time {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()
	return r.modified
}

// Version returns number of membership changes made on the ring.
func (r *Ring) Version() int {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()
	return r.version
}

// Lookup returns the server owning the key.
// It returns ErrEmptyRing if there are no servers on the ring.
func (r *Ring) Lookup(key string) (Server, error) {
	return r.LookupBytes([]byte(key))
}

// LookupBytes is like Lookup but accepts key as a byte slice.
func (r *Ring) LookupBytes(key []byte) (Server, error) {
	h := r.keyHash().Hash(key)

	r.ringMu.RLock()
	_, s, ok := r.cont.Ceiling(h)
	r.ringMu.RUnlock()

	if !ok {
		return Server{}, ErrEmptyRing
	}
	return s, nil
}

// LookupN returns up to n distinct servers for the key, walking the ring
// clockwise from the key's point. The first server is the one returned by
// Lookup. It is useful to build replica sets or fallback lists.
func (r *Ring) LookupN(key string, n int) ([]Server, error) {
	if n <= 0 {
		return nil, fmt.Errorf("ketama: number of servers must be greater than zero: %w", ErrInvalidArgument)
	}
	h := r.keyHash().Hash([]byte(key))

	r.ringMu.RLock()
	cont := r.cont
	size := len(r.members)
	r.ringMu.RUnlock()

	v, s, ok := cont.Ceiling(h)
	if !ok {
		return nil, ErrEmptyRing
	}
	if n > size {
		n = size
	}
	var (
		ret  = make([]Server, 0, n)
		seen = make(map[Server]bool, n)
	)
	for i := cont.Len(); i > 0 && len(ret) < n; i-- {
		if !seen[s] {
			seen[s] = true
			ret = append(ret, s)
		}
		v, s = cont.next(v)
	}
	return ret, nil
}

// Clone returns a copy of the ring. The copy shares no mutable state with r.
func (r *Ring) Clone() *Ring {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()

	members := make(map[Server]int, len(r.members))
	for s, w := range r.members {
		members[s] = w
	}
	return &Ring{
		KeyHash:         r.KeyHash,
		Strategy:        r.Strategy,
		PointsPerServer: r.PointsPerServer,
		Trace:           r.Trace,
		Now:             r.Now,

		cont:     Continuum{tree: r.cont.tree},
		members:  members,
		modified: r.modified,
		version:  r.version,
	}
}

func (r *Ring) keyHash() HashFunction {
	if h := r.KeyHash; h != nil {
		return h
	}
	return FNV1a32{}
}

func (r *Ring) strategy() ServerHashStrategy {
	if s := r.Strategy; s != nil {
		return s
	}
	return ChainedStrategy{}
}

func (r *Ring) pointsPerServer() int {
	if n := r.PointsPerServer; n > 0 {
		return n
	}
	return PointsPerServer
}

func (r *Ring) checkPoints() error {
	if n := r.PointsPerServer; n < 0 || n > MaxServerPoints {
		return fmt.Errorf("ketama: points per server must be in range (0, %d]: %w", MaxServerPoints, ErrInvalidArgument)
	}
	return nil
}

func (r *Ring) checkWeight(s Server, w int) error {
	if w <= 0 {
		return fmt.Errorf("ketama: server %q weight must be greater than zero: %w", s.name, ErrInvalidArgument)
	}
	if max := MaxServerPoints / r.pointsPerServer(); w > max {
		return fmt.Errorf("ketama: server %q weight %d is greater than %d: %w", s.name, w, max, ErrInvalidArgument)
	}
	return nil
}

func (r *Ring) now() time.Time {
	if fn := r.Now; fn != nil {
		return fn()
	}
	return time.Now()
}

// tx is a pending modification of the ring state.
type tx struct {
	r       *Ring
	cont    Continuum
	members map[Server]int
	changes int
	cloned  bool
}

// r.mu must be held.
func (r *Ring) begin() *tx {
	return &tx{
		r:       r,
		cont:    Continuum{tree: r.cont.tree, collide: r.Trace.OnCollision},
		members: r.members,
	}
}

func (t *tx) add(s Server, w int) {
	if _, has := t.members[s]; has {
		return
	}
	n := t.r.pointsPerServer() * w
	if err := t.r.strategy().Place(s, &t.cont, n); err != nil {
		// Arguments are validated before, so this is a strategy bug.
		panic(fmt.Sprintf("ketama: internal error: place %s: %v", s, err))
	}
	t.mutableMembers()[s] = w
	t.changes++
	t.r.Trace.onAdd(s, w)
}

func (t *tx) remove(s Server) {
	w, has := t.members[s]
	if !has {
		return
	}
	n := t.r.pointsPerServer() * w
	if err := t.r.strategy().Unplace(s, &t.cont, n); err != nil {
		panic(fmt.Sprintf("ketama: internal error: unplace %s: %v", s, err))
	}
	delete(t.mutableMembers(), s)
	t.changes++
	t.r.Trace.onRemove(s)
}

// mutableMembers copies the members map on first write, so readers holding
// the previous map are not affected.
func (t *tx) mutableMembers() map[Server]int {
	if t.cloned {
		return t.members
	}
	m := make(map[Server]int, len(t.members)+1)
	for s, w := range t.members {
		m[s] = w
	}
	t.members = m
	t.cloned = true
	return m
}

// r.mu must be held.
func (r *Ring) commit(t *tx) {
	if t.changes == 0 {
		return
	}
	assertConsistent(r, &t.cont, t.members)

	now := r.now()

	r.ringMu.Lock()
	r.cont = Continuum{tree: t.cont.tree}
	r.members = t.members
	r.modified = now
	r.version += t.changes
	r.ringMu.Unlock()
}

func validServers(servers []Server) error {
	for _, s := range servers {
		if err := s.valid(); err != nil {
			return err
		}
	}
	return nil
}

func sortServers(ss []Server) {
	sort.Slice(ss, func(i, j int) bool {
		return compareServers(ss[i], ss[j]) < 0
	})
}
