package pool

import (
	"fmt"
	"runtime/debug"
)

// misuse reports a broken ownership precondition. It never returns.
func (p *Pool[T, A]) misuse(kind string, obj any) {
	p.metrics.observeMisuse(p.name, kind)
	panic(misuseMessage(p.name, kind, obj))
}

func misuseMessage(poolName, kind string, obj any) string {
	return fmt.Sprintf("pool %s: %s detected for %T\n%s", poolName, kind, obj, debug.Stack())
}
