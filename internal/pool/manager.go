package pool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/objpool/errs"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	defaultPollInterval    = 10 * time.Millisecond
)

var (
	// ErrPoolNotRegistered indicates the requested pool has not been registered.
	ErrPoolNotRegistered = errs.New("", errs.CodeNotFound)
	// ErrManagerClosed indicates the manager is shutting down and cannot service requests.
	ErrManagerClosed = errs.New("", errs.CodeClosed)
)

type leakReporter interface {
	activeStacks() []string
}

// Manager coordinates named pools, providing lookup, aggregated stats and
// graceful shutdown that waits for outstanding handles.
type Manager struct {
	mu           sync.RWMutex
	pools        map[string]Managed
	logger       *log.Logger
	pollInterval time.Duration
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewManager constructs an empty manager. A nil logger uses the standard
// logger.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	m := new(Manager)
	m.pools = make(map[string]Managed)
	m.logger = logger
	m.pollInterval = defaultPollInterval
	m.shutdownCh = make(chan struct{})
	return m
}

// Register adds a pool under its own name.
func (m *Manager) Register(p Managed) error {
	if p == nil {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("pool manager: nil pool"))
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return errs.New("", errs.CodeInvalid, errs.WithMessage("pool manager: pool name required"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.shutdownCh:
		return errs.New(name, errs.CodeClosed, errs.WithMessage("pool manager: shutdown in progress"))
	default:
	}

	if _, exists := m.pools[name]; exists {
		return errs.New(name, errs.CodeConflict, errs.WithMessage("pool manager: pool already registered"))
	}
	m.pools[name] = p
	return nil
}

// Lookup returns the pool registered under name.
func (m *Manager) Lookup(name string) (Managed, error) {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return nil, errs.New(name, errs.CodeNotFound, errs.WithMessage("pool manager: pool not registered"))
	}
	return p, nil
}

// Lookup returns the typed pool registered under name.
func Lookup[T Poolable, A any](m *Manager, name string) (*Pool[T, A], error) {
	managed, err := m.Lookup(name)
	if err != nil {
		return nil, err
	}
	p, ok := managed.(*Pool[T, A])
	if !ok {
		return nil, errs.New(name, errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("pool manager: pool holds %T", managed)))
	}
	return p, nil
}

// Names returns the registered pool names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshot returns the stats of every registered pool keyed by name.
func (m *Manager) Snapshot() map[string]Stats {
	pools := m.registered()
	out := make(map[string]Stats, len(pools))
	for _, p := range pools {
		out[p.Name()] = p.Stats()
	}
	return out
}

// Outstanding returns the number of live handles across all pools.
func (m *Manager) Outstanding() int {
	total := 0
	for _, p := range m.registered() {
		total += p.Stats().Outstanding
	}
	return total
}

// Shutdown refuses further registrations, waits until every handle has been
// released or ctx is done (defaulting to 5 seconds), then closes all pools.
// On timeout the pools are left open and the outstanding handles are logged.
//
// Shutdown does not stop Checkout. Callers must quiesce their workers first;
// a handle checked out after the wait completes is logged as a leak when its
// pool closes, and its Release panics.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
	}
	if cancel != nil {
		defer cancel()
	}

	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
	})

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for m.Outstanding() > 0 {
		select {
		case <-ctx.Done():
			remaining := m.Outstanding()
			m.logOutstanding(remaining)
			return errs.New("", errs.CodeClosed,
				errs.WithMessage(fmt.Sprintf("shutdown timeout: %d pooled objects unreturned", remaining)),
				errs.WithCause(ctx.Err()))
		case <-ticker.C:
		}
	}

	return m.closeAll()
}

func (m *Manager) closeAll() error {
	var (
		wg      conc.WaitGroup
		mu      sync.Mutex
		closeEr []error
	)
	for _, p := range m.registered() {
		wg.Go(func() {
			if n := p.Stats().Outstanding; n > 0 {
				m.logger.Printf("pool manager: closing %s with %d handles checked out after drain", p.Name(), n)
				m.logLeaks(p)
			}
			if err := p.Close(); err != nil {
				mu.Lock()
				closeEr = append(closeEr, fmt.Errorf("close %s: %w", p.Name(), err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(closeEr...)
}

func (m *Manager) registered() []Managed {
	m.mu.RLock()
	out := make([]Managed, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	m.mu.RUnlock()
	return out
}

func (m *Manager) logOutstanding(remaining int) {
	if remaining <= 0 {
		return
	}
	m.logger.Printf("pool manager: shutdown timed out with %d objects in flight", remaining)
	for _, p := range m.registered() {
		m.logLeaks(p)
	}
}

func (m *Manager) logLeaks(p Managed) {
	reporter, ok := p.(leakReporter)
	if !ok {
		return
	}
	for _, stack := range reporter.activeStacks() {
		m.logger.Printf("pool manager: leak candidate in pool %s\n%s", p.Name(), stack)
	}
}
