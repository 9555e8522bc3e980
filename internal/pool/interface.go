package pool

// Poolable describes objects managed by a Pool. Reset restores the object to
// the state of a freshly constructed instance. It must be idempotent and must
// not fail.
//
// Types that also implement io.Closer are closed when the pool is torn down.
type Poolable interface {
	Reset()
}

// Managed is the type-erased view of a pool used by the Manager.
type Managed interface {
	Name() string
	Stats() Stats
	Close() error
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Name        string `json:"name"`
	MaxSize     int    `json:"max_size"`
	Size        int    `json:"size"`
	FreeSlots   int    `json:"free_slots"`
	Free        int    `json:"free"`
	Idle        int    `json:"idle"`
	Outstanding int    `json:"outstanding"`
	Closed      bool   `json:"closed"`
}

// returner is the back reference a Handle keeps to the pool it came from.
type returner[T Poolable] interface {
	giveBack(h *Handle[T])
	misuse(kind string, obj any)
}
