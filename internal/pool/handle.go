package pool

import "sync/atomic"

// Handle is exclusive, temporary ownership of one pooled instance. Release
// resets the instance and returns it to the originating pool; call it with
// defer right after a successful Checkout.
//
// The handle does not keep its pool usable: releasing after the pool has
// been closed panics.
type Handle[T Poolable] struct {
	obj      T
	owner    returner[T]
	released atomic.Bool
}

// Value returns the checked-out instance. It panics once the handle has been
// released.
func (h *Handle[T]) Value() T {
	if h.released.Load() {
		h.owner.misuse("use after release", h.obj)
	}
	return h.obj
}

// Release returns the instance to its pool. Releasing a nil handle is a
// no-op so an unsuccessful Checkout can still be paired with a deferred
// Release. Releasing twice panics.
func (h *Handle[T]) Release() {
	if h == nil {
		return
	}
	if !h.released.CompareAndSwap(false, true) {
		h.owner.misuse("double release", h.obj)
		return
	}
	h.owner.giveBack(h)
}

// Released reports whether Release has been called.
func (h *Handle[T]) Released() bool {
	return h.released.Load()
}
