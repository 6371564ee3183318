package ketama

// Trace contains optional callbacks called on ring events.
// Callbacks are called with the ring's write lock held and must not call
// ring's mutating methods.
type Trace struct {
	// OnAdd is called after server is placed on the ring with given weight.
	OnAdd func(s Server, weight int)
	// OnRemove is called after server is removed from the ring.
	OnRemove func(s Server)
	// OnCollision is called when point v of prev is taken over by next.
	OnCollision func(v uint32, prev, next Server)
	// OnSynchronize is called after the ring is synchronized with a target
	// set of servers.
	OnSynchronize func(added, removed int)
}

// Compose returns a new Trace which has functional fields composed both from
// t and x.
func (t Trace) Compose(x Trace) (ret Trace) {
	switch {
	case t.OnAdd == nil:
		ret.OnAdd = x.OnAdd
	case x.OnAdd == nil:
		ret.OnAdd = t.OnAdd
	default:
		h1, h2 := t.OnAdd, x.OnAdd
		ret.OnAdd = func(s Server, w int) {
			h1(s, w)
			h2(s, w)
		}
	}
	switch {
	case t.OnRemove == nil:
		ret.OnRemove = x.OnRemove
	case x.OnRemove == nil:
		ret.OnRemove = t.OnRemove
	default:
		h1, h2 := t.OnRemove, x.OnRemove
		ret.OnRemove = func(s Server) {
			h1(s)
			h2(s)
		}
	}
	switch {
	case t.OnCollision == nil:
		ret.OnCollision = x.OnCollision
	case x.OnCollision == nil:
		ret.OnCollision = t.OnCollision
	default:
		h1, h2 := t.OnCollision, x.OnCollision
		ret.OnCollision = func(v uint32, prev, next Server) {
			h1(v, prev, next)
			h2(v, prev, next)
		}
	}
	switch {
	case t.OnSynchronize == nil:
		ret.OnSynchronize = x.OnSynchronize
	case x.OnSynchronize == nil:
		ret.OnSynchronize = t.OnSynchronize
	default:
		h1, h2 := t.OnSynchronize, x.OnSynchronize
		ret.OnSynchronize = func(a, r int) {
			h1(a, r)
			h2(a, r)
		}
	}
	return ret
}

func (t Trace) onAdd(s Server, w int) {
	if fn := t.OnAdd; fn != nil {
		fn(s, w)
	}
}

func (t Trace) onRemove(s Server) {
	if fn := t.OnRemove; fn != nil {
		fn(s)
	}
}

func (t Trace) onSynchronize(added, removed int) {
	if fn := t.OnSynchronize; fn != nil {
		fn(added, removed)
	}
}
