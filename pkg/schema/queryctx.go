package schema

import (
	"fmt"
	"sync"
)

// Ctx is a minimal QueryCtx + ErrorCtx implementation, used by this
// repository's tests and cmd/planviz.
type Ctx struct {
	mu sync.Mutex

	graph    Graph
	graphCtx GraphContext
	lock     sync.Mutex
	stats    Stats

	err error
}

// NewCtx creates a Ctx bound to the given GraphContext.
func NewCtx(gc GraphContext) *Ctx {
	return &Ctx{graphCtx: gc, graph: gc.Graph()}
}

func (c *Ctx) Graph() Graph           { return c.graph }
func (c *Ctx) GraphCtx() GraphContext { return c.graphCtx }
func (c *Ctx) Stats() *Stats          { return &c.stats }

// LockForCommit acquires the writer-exclusive lock and returns the release
// function; callers must defer the result.
func (c *Ctx) LockForCommit() func() {
	c.lock.Lock()
	return c.lock.Unlock
}

// SetError records the first error encountered during query execution;
// subsequent calls are no-ops, matching the original's "stop reporting after
// the first violation" contract (spec §5, §7).
func (c *Ctx) SetError(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = fmt.Errorf(format, args...)
}

// EncounteredError reports whether SetError has been called.
func (c *Ctx) EncounteredError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err != nil
}

// Err returns the recorded error, or nil.
func (c *Ctx) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
