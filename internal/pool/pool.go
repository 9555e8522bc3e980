// Package pool provides a bounded object pool with lazy construction and
// automatic return-to-pool through checkout handles.
package pool

import (
	"errors"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/coachpo/objpool/errs"
)

var (
	// ErrExhausted matches errors reported when no idle instance exists and no
	// construction slot remains.
	ErrExhausted = errs.New("", errs.CodeExhausted)
	// ErrCapacityExceeded matches construction requests whose eager fill
	// exceeds the pool capacity.
	ErrCapacityExceeded = errs.New("", errs.CodeCapacity)
)

// Option configures a Pool at construction time.
type Option func(*options)

type options struct {
	name    string
	logger  *log.Logger
	metrics *Metrics
}

// WithName names the pool in logs, errors and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger overrides the logger used for lifecycle diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus instruments to the pool.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Pool hands out instances of T, constructing them lazily from a fixed
// argument value until maxSize instances exist. Returned instances are reset
// and reused last-in first-out.
//
// A Pool must not be closed while handles checked out from it are live.
type Pool[T Poolable, A any] struct {
	name    string
	ctor    func(A) T
	args    A
	logger  *log.Logger
	metrics *Metrics
	debug   *debugState

	mu          sync.Mutex
	maxSize     int
	freeSlots   int
	size        int
	outstanding int
	idle        []T
	closed      bool
}

// New constructs a pool that eagerly builds initialCount instances and may
// construct at most maxSize instances over its lifetime. Every instance is
// built by calling ctor(args).
func New[T Poolable, A any](initialCount, maxSize int, ctor func(A) T, args A, opts ...Option) (*Pool[T, A], error) {
	o := options{logger: log.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.name == "" {
		o.name = "pool-" + uuid.NewString()[:8]
	}

	if ctor == nil {
		return nil, errs.New(o.name, errs.CodeInvalid, errs.WithMessage("constructor required"))
	}
	if maxSize < 0 || initialCount < 0 {
		return nil, errs.New(o.name, errs.CodeInvalid,
			errs.WithMessage("counts must be non-negative"),
			errs.WithIntField("initial", initialCount),
			errs.WithIntField("max", maxSize))
	}
	if initialCount > maxSize {
		return nil, errs.New(o.name, errs.CodeCapacity,
			errs.WithMessage("initial count exceeds max size"),
			errs.WithIntField("initial", initialCount),
			errs.WithIntField("max", maxSize),
			errs.WithRemediation("lower the initial count or raise the max size"))
	}

	p := &Pool[T, A]{
		name:      o.name,
		ctor:      ctor,
		args:      args,
		logger:    o.logger,
		metrics:   o.metrics,
		debug:     newDebugState(o.name),
		maxSize:   maxSize,
		freeSlots: maxSize,
		idle:      make([]T, 0, initialCount),
	}
	for i := 0; i < initialCount; i++ {
		p.idle = append(p.idle, p.construct())
	}
	return p, nil
}

// construct builds one instance and consumes a slot. Callers hold p.mu or
// own p exclusively.
func (p *Pool[T, A]) construct() T {
	obj := p.ctor(p.args)
	p.size++
	p.freeSlots--
	p.metrics.observeConstruct(p.name)
	return obj
}

// Checkout hands out the most recently returned idle instance, or constructs
// a new one while slots remain. It reports false when the pool is exhausted
// or closed; it never blocks.
func (p *Pool[T, A]) Checkout() (*Handle[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.metrics.observeCheckout(p.name, outcomeClosed)
		return nil, false
	}

	var obj T
	outcome := outcomeReused
	if n := len(p.idle); n > 0 {
		obj = p.idle[n-1]
		var zero T
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.debug.clear(obj)
	} else {
		if p.freeSlots == 0 {
			p.metrics.observeCheckout(p.name, outcomeExhausted)
			return nil, false
		}
		obj = p.construct()
		outcome = outcomeConstructed
	}

	p.outstanding++
	h := &Handle[T]{obj: obj, owner: p}
	p.debug.recordAcquire(h)
	p.metrics.observeCheckout(p.name, outcome)
	return h, true
}

// Use checks out an instance for the duration of fn and returns it when fn
// returns or panics. It returns an error matching ErrExhausted when nothing
// can be checked out.
func (p *Pool[T, A]) Use(fn func(T) error) error {
	h, ok := p.Checkout()
	if !ok {
		return p.exhaustedError()
	}
	defer h.Release()
	return fn(h.Value())
}

func (p *Pool[T, A]) exhaustedError() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errs.New(p.name, errs.CodeClosed, errs.WithMessage("pool closed"))
	}
	return errs.New(p.name, errs.CodeExhausted,
		errs.WithMessage("no idle instance and no construction slot"),
		errs.WithIntField("max", p.maxSize))
}

// giveBack resets the instance and pushes it onto the idle stack. An instance
// whose Reset panics is dropped; the handle still stops counting as
// outstanding and the panic propagates to the releaser.
func (p *Pool[T, A]) giveBack(h *Handle[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.misuse("release into closed pool", h.obj)
	}
	p.outstanding--
	p.debug.recordRelease(h)

	h.obj.Reset()
	p.debug.poison(h.obj)
	p.idle = append(p.idle, h.obj)
	p.metrics.observeReturn(p.name)
}

// Name returns the pool name.
func (p *Pool[T, A]) Name() string { return p.name }

// MaxSize returns the capacity ceiling.
func (p *Pool[T, A]) MaxSize() int { return p.maxSize }

// FreeSlots returns the number of instances that may still be constructed.
// Returning an instance does not give its slot back.
func (p *Pool[T, A]) FreeSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freeSlots
}

// Free returns how many more checkouts could succeed right now, counting both
// idle instances and remaining construction slots.
func (p *Pool[T, A]) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSize - p.outstanding
}

// Size returns the number of instances ever constructed.
func (p *Pool[T, A]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// IdleCount returns the number of instances waiting in the idle set.
func (p *Pool[T, A]) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// IsIdleEmpty reports whether the idle set is empty.
func (p *Pool[T, A]) IsIdleEmpty() bool {
	return p.IdleCount() == 0
}

// Outstanding returns the number of live handles.
func (p *Pool[T, A]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// Stats returns a consistent snapshot of all counters.
func (p *Pool[T, A]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:        p.name,
		MaxSize:     p.maxSize,
		Size:        p.size,
		FreeSlots:   p.freeSlots,
		Free:        p.maxSize - p.outstanding,
		Idle:        len(p.idle),
		Outstanding: p.outstanding,
		Closed:      p.closed,
	}
}

// Close destroys every idle instance, closing those that implement
// io.Closer. Handles still live at this point are a usage error: Close logs
// them and their later Release panics. Close is idempotent.
func (p *Pool[T, A]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	outstanding := p.outstanding
	p.mu.Unlock()

	if outstanding > 0 {
		p.logger.Printf("pool %s: closed with %d handles outstanding", p.name, outstanding)
		for _, stack := range p.debug.activeStacks() {
			p.logger.Printf("pool %s: leak candidate\n%s", p.name, stack)
		}
	}

	var closeErrs []error
	for _, obj := range idle {
		if c, ok := any(obj).(io.Closer); ok {
			if err := c.Close(); err != nil {
				closeErrs = append(closeErrs, err)
			}
		}
	}
	if len(closeErrs) > 0 {
		return errs.New(p.name, errs.CodeClosed,
			errs.WithMessage("destroy idle instances"),
			errs.WithCause(errors.Join(closeErrs...)))
	}
	return nil
}

func (p *Pool[T, A]) activeStacks() []string {
	return p.debug.activeStacks()
}
