//go:build !debug

package pool

type debugState struct{}

func newDebugState(string) *debugState { return nil }

func (d *debugState) recordAcquire(any) {}

func (d *debugState) recordRelease(any) {}

func (d *debugState) activeStacks() []string { return nil }

func (d *debugState) poison(Poolable) {}

func (d *debugState) clear(Poolable) {}
