package execution

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// Context holds the mutable state of one run or one loop iteration:
// values produced on ports, injected service handles and the
// cooperative cancellation flag.
//
// Values are keyed by port id, which is globally unique across the
// pipeline, so lookups are O(1) without consulting the owning node.
type Context struct {
	mu     sync.RWMutex
	values map[string]any

	// services and cancelled are shared by reference across every
	// scoped copy of the run. There is exactly one cancel flag per run.
	services  map[string]any
	cancelled *atomic.Bool
}

// NewContext creates a root context for one run with the given named
// service handles. The handles are resolved once here and shared by
// reference for the whole run.
func NewContext(services map[string]any) *Context {
	if services == nil {
		services = make(map[string]any)
	}
	return &Context{
		values:    make(map[string]any),
		services:  services,
		cancelled: &atomic.Bool{},
	}
}

// ScopedCopy produces a child context for one loop iteration or branch
// evaluation. The child shares the service map and cancel flag by
// reference but owns an independent value map seeded with a snapshot of
// the parent's values, so one iteration's intermediate results cannot
// leak into or be overwritten by another.
func (c *Context) ScopedCopy() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()

	values := make(map[string]any, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return &Context{
		values:    values,
		services:  c.services,
		cancelled: c.cancelled,
	}
}

// SetValue stores the value produced on a port.
func (c *Context) SetValue(portID string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[portID] = v
}

// Value returns the value stored for a port.
func (c *Context) Value(portID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[portID]
	return v, ok
}

// Service returns an injected service handle by name.
func (c *Context) Service(name string) (any, bool) {
	s, ok := c.services[name]
	return s, ok
}

// Cancel requests a cooperative stop. The flag is shared with every
// scoped copy, so a cancel issued mid-iteration is observed by nested
// subgraph execution.
func (c *Context) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether a stop has been requested.
func (c *Context) Cancelled() bool {
	return c.cancelled.Load()
}

// InputValue resolves the value arriving on a named input port of a
// node: it follows the port's incoming connection (if any) and looks up
// the source port's stored value.
//
// For an unconnected optional input it returns ok=false with no error.
// Calling it for an unconnected required input is a programming error:
// callers must have validated the graph, which guarantees required
// inputs are connected.
func (c *Context) InputValue(p *pipeline.Pipeline, nodeID, portName string) (any, bool, error) {
	node, ok := p.Node(nodeID)
	if !ok {
		return nil, false, fmt.Errorf("node not found: %s", nodeID)
	}
	port, ok := node.Input(portName)
	if !ok {
		return nil, false, fmt.Errorf("node %s has no input %q", nodeID, portName)
	}

	conn, connected := p.IncomingConnection(port.ID)
	if !connected {
		if port.Required {
			return nil, false, fmt.Errorf("required input %q of node %s is unconnected; the graph was not validated", portName, nodeID)
		}
		return nil, false, nil
	}

	v, ok := c.Value(conn.SourcePortID)
	return v, ok, nil
}
