// Package counter provides a small poolable object used to exercise pools.
package counter

import (
	"fmt"
	"sync/atomic"
)

// Tracker counts counter constructions and destructions.
type Tracker struct {
	constructed atomic.Int64
	destroyed   atomic.Int64
}

// Constructed returns the number of counters built through the tracker.
func (t *Tracker) Constructed() int64 { return t.constructed.Load() }

// Destroyed returns the number of tracked counters that have been closed.
func (t *Tracker) Destroyed() int64 { return t.destroyed.Load() }

// Args is the construction argument set for Build.
type Args struct {
	Initial int
	Tracker *Tracker
}

// Counter holds a number that starts at, and resets to, an initial value.
type Counter struct {
	num     int
	initial int
	closed  bool
	tracker *Tracker
}

// New returns a counter starting at initial.
func New(initial int) *Counter {
	return &Counter{num: initial, initial: initial}
}

// Build returns a counter from args, recording it on the tracker if set.
func Build(args Args) *Counter {
	c := New(args.Initial)
	c.tracker = args.Tracker
	if c.tracker != nil {
		c.tracker.constructed.Add(1)
	}
	return c
}

// Increment adds one.
func (c *Counter) Increment() { c.num++ }

// Value returns the current number.
func (c *Counter) Value() int { return c.num }

// Initial returns the value Reset restores.
func (c *Counter) Initial() int { return c.initial }

// Reset restores the initial value.
func (c *Counter) Reset() { c.num = c.initial }

// Closed reports whether Close has been called.
func (c *Counter) Closed() bool { return c.closed }

// Close marks the counter destroyed. Closing twice is an error.
func (c *Counter) Close() error {
	if c.closed {
		return fmt.Errorf("counter: already closed")
	}
	c.closed = true
	if c.tracker != nil {
		c.tracker.destroyed.Add(1)
	}
	return nil
}

func (c *Counter) String() string {
	return fmt.Sprintf("My number is: %d", c.num)
}
