package pipeline

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// TypeMismatchError is returned when a connection is attempted between
// ports whose types are incompatible. It is rejected at edit time and
// can never reach a run.
type TypeMismatchError struct {
	SourcePort string
	TargetPort string
	SourceType PortType
	TargetType PortType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("incompatible port types: %s (%s) -> %s (%s)",
		e.SourcePort, e.SourceType, e.TargetPort, e.TargetType)
}

// Pipeline is a named directed acyclic graph of nodes and connections.
// It is the unit of validation, execution and persistence. Execution
// state lives in a separate execution context, never in the Pipeline, so
// the same graph can be re-run.
type Pipeline struct {
	Name string

	nodes       map[string]*Node
	connections map[string]*Connection

	// Adjacency indexes, maintained incrementally on every structural
	// mutation so traversal-heavy operations do not re-derive them from
	// the flat connection list.
	outgoing       map[string][]*Connection // source node id -> connections
	incoming       map[string][]*Connection // target node id -> connections
	incomingByPort map[string]*Connection   // target port id -> its single connection
	outgoingByPort map[string][]*Connection // source port id -> fan-out
}

// New creates an empty pipeline.
func New(name string) *Pipeline {
	return &Pipeline{
		Name:           name,
		nodes:          make(map[string]*Node),
		connections:    make(map[string]*Connection),
		outgoing:       make(map[string][]*Connection),
		incoming:       make(map[string][]*Connection),
		incomingByPort: make(map[string]*Connection),
		outgoingByPort: make(map[string][]*Connection),
	}
}

// Node returns the node with the given id.
func (p *Pipeline) Node(id string) (*Node, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Connection returns the connection with the given id.
func (p *Pipeline) Connection(id string) (*Connection, bool) {
	c, ok := p.connections[id]
	return c, ok
}

// NodeIDs returns all node ids in sorted order.
func (p *Pipeline) NodeIDs() []string {
	ids := make([]string, 0, len(p.nodes))
	for id := range p.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectionIDs returns all connection ids in sorted order.
func (p *Pipeline) ConnectionIDs() []string {
	ids := make([]string, 0, len(p.connections))
	for id := range p.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (p *Pipeline) NodeCount() int { return len(p.nodes) }

// ConnectionCount returns the number of connections.
func (p *Pipeline) ConnectionCount() int { return len(p.connections) }

// IncomingConnection returns the single connection feeding the given
// input port, if any.
func (p *Pipeline) IncomingConnection(portID string) (*Connection, bool) {
	c, ok := p.incomingByPort[portID]
	return c, ok
}

// AddNode inserts a node. The node id must be unique, its type known,
// and its port ids must not collide with ports already in the graph.
func (p *Pipeline) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("node is nil")
	}
	if n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("unknown node type: %s", n.Type)
	}
	if _, exists := p.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node id: %s", n.ID)
	}
	seen := make(map[string]bool)
	for _, port := range append(append([]Port{}, n.Inputs...), n.Output...) {
		if port.ID == "" {
			return fmt.Errorf("node %s has a port without an id", n.ID)
		}
		if seen[port.ID] {
			return fmt.Errorf("node %s has duplicate port id: %s", n.ID, port.ID)
		}
		seen[port.ID] = true
		if other, ok := p.ownerOf(port.ID); ok {
			return fmt.Errorf("port id %s already owned by node %s", port.ID, other)
		}
	}

	p.nodes[n.ID] = n
	return nil
}

// RemoveNode removes the node and cascades removal of every connection
// touching it. The removal is all-or-nothing: an unknown id leaves the
// graph unchanged.
func (p *Pipeline) RemoveNode(id string) error {
	if _, exists := p.nodes[id]; !exists {
		return fmt.Errorf("node not found: %s", id)
	}

	for _, c := range p.connectionList() {
		if c.SourceNodeID == id || c.TargetNodeID == id {
			p.dropConnection(c)
		}
	}
	delete(p.nodes, id)
	return nil
}

// AddConnection validates and inserts a directed edge from an output
// port to an input port. On any violation the graph is left unchanged
// and a descriptive error is returned.
func (p *Pipeline) AddConnection(srcNodeID, srcPortID, tgtNodeID, tgtPortID string) (*Connection, error) {
	srcNode, ok := p.nodes[srcNodeID]
	if !ok {
		return nil, fmt.Errorf("source node not found: %s", srcNodeID)
	}
	tgtNode, ok := p.nodes[tgtNodeID]
	if !ok {
		return nil, fmt.Errorf("target node not found: %s", tgtNodeID)
	}
	srcPort, ok := srcNode.PortByID(srcPortID)
	if !ok {
		return nil, fmt.Errorf("port %s not found on node %s", srcPortID, srcNodeID)
	}
	tgtPort, ok := tgtNode.PortByID(tgtPortID)
	if !ok {
		return nil, fmt.Errorf("port %s not found on node %s", tgtPortID, tgtNodeID)
	}
	if srcPort.Direction != DirectionOutput {
		return nil, fmt.Errorf("source port %s is not an output", srcPortID)
	}
	if tgtPort.Direction != DirectionInput {
		return nil, fmt.Errorf("target port %s is not an input", tgtPortID)
	}
	if srcNodeID == tgtNodeID {
		return nil, fmt.Errorf("self-loop not allowed on node %s", srcNodeID)
	}
	if !CanConnect(srcPort.Type, tgtPort.Type) {
		return nil, &TypeMismatchError{
			SourcePort: srcPortID,
			TargetPort: tgtPortID,
			SourceType: srcPort.Type,
			TargetType: tgtPort.Type,
		}
	}
	if existing, ok := p.incomingByPort[tgtPortID]; ok {
		return nil, fmt.Errorf("input port %s already connected (connection %s)", tgtPortID, existing.ID)
	}
	// An input holds a single current value, so an edge back from the
	// target would close a cycle. Reachability is checked before any
	// mutation.
	if p.reachable(tgtNodeID, srcNodeID) {
		return nil, fmt.Errorf("connection %s -> %s would create a cycle", srcNodeID, tgtNodeID)
	}

	c := &Connection{
		ID:           uuid.New().String(),
		SourceNodeID: srcNodeID,
		SourcePortID: srcPortID,
		TargetNodeID: tgtNodeID,
		TargetPortID: tgtPortID,
	}
	p.insertConnection(c)
	return c, nil
}

// RemoveConnection deletes a connection by id.
func (p *Pipeline) RemoveConnection(id string) error {
	c, ok := p.connections[id]
	if !ok {
		return fmt.Errorf("connection not found: %s", id)
	}
	p.dropConnection(c)
	return nil
}

// TopologicalSort orders the node set so that every node appears after
// all nodes it depends on (Kahn's algorithm). Ties between ready nodes
// are broken by node id, so repeated calls on an unchanged graph return
// an identical order. Returns an error if the graph contains a cycle.
func (p *Pipeline) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(p.nodes))
	for id := range p.nodes {
		indegree[id] = 0
	}
	for _, c := range p.connections {
		indegree[c.TargetNodeID]++
	}

	ready := make([]string, 0, len(p.nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(p.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := make([]string, 0)
		for _, c := range p.outgoing[id] {
			indegree[c.TargetNodeID]--
			if indegree[c.TargetNodeID] == 0 {
				released = append(released, c.TargetNodeID)
			}
		}
		sort.Strings(released)
		ready = mergeSorted(ready, released)
	}

	if len(order) != len(p.nodes) {
		return nil, fmt.Errorf("cycle detected: %d of %d nodes unsortable", len(p.nodes)-len(order), len(p.nodes))
	}
	return order, nil
}

// Validate returns a list of human-readable problems with the graph. An
// empty list means the pipeline is safe to execute. Unlike the mutation
// methods it never returns an error value; problems are collected, not
// raised.
func (p *Pipeline) Validate() []string {
	var problems []string

	for _, id := range p.ConnectionIDs() {
		c := p.connections[id]
		srcNode, ok := p.nodes[c.SourceNodeID]
		if !ok {
			problems = append(problems, fmt.Sprintf("connection %s references missing source node %s", c.ID, c.SourceNodeID))
			continue
		}
		tgtNode, ok := p.nodes[c.TargetNodeID]
		if !ok {
			problems = append(problems, fmt.Sprintf("connection %s references missing target node %s", c.ID, c.TargetNodeID))
			continue
		}
		srcPort, ok := srcNode.PortByID(c.SourcePortID)
		if !ok {
			problems = append(problems, fmt.Sprintf("connection %s references missing port %s", c.ID, c.SourcePortID))
			continue
		}
		tgtPort, ok := tgtNode.PortByID(c.TargetPortID)
		if !ok {
			problems = append(problems, fmt.Sprintf("connection %s references missing port %s", c.ID, c.TargetPortID))
			continue
		}
		if srcPort.Direction != DirectionOutput {
			problems = append(problems, fmt.Sprintf("connection %s source port %s is not an output", c.ID, c.SourcePortID))
		}
		if tgtPort.Direction != DirectionInput {
			problems = append(problems, fmt.Sprintf("connection %s target port %s is not an input", c.ID, c.TargetPortID))
		}
		if !CanConnect(srcPort.Type, tgtPort.Type) {
			problems = append(problems, fmt.Sprintf("connection %s has incompatible types %s -> %s", c.ID, srcPort.Type, tgtPort.Type))
		}
	}

	for _, id := range p.NodeIDs() {
		n := p.nodes[id]
		for _, port := range n.Inputs {
			if !port.Required {
				continue
			}
			if _, ok := p.incomingByPort[port.ID]; !ok {
				problems = append(problems, fmt.Sprintf("required input %s of node %s is unconnected", port.Name, n.ID))
			}
		}
	}

	if _, err := p.TopologicalSort(); err != nil {
		problems = append(problems, err.Error())
	}

	return problems
}

// DownstreamNodes returns every node reachable from the given node via
// directed edges, breadth-first, excluding the node itself.
func (p *Pipeline) DownstreamNodes(nodeID string) []string {
	return p.bfs(func(id string) []*Connection { return p.outgoing[id] }, p.outgoing[nodeID])
}

// DownstreamFromPort returns every node reachable through connections
// leaving one specific output port of the given node.
func (p *Pipeline) DownstreamFromPort(nodeID, portID string) []string {
	_ = nodeID
	return p.bfs(func(id string) []*Connection { return p.outgoing[id] }, p.outgoingByPort[portID])
}

// ownerOf returns the id of the node owning the given port, if any.
func (p *Pipeline) ownerOf(portID string) (string, bool) {
	for id, n := range p.nodes {
		if _, ok := n.PortByID(portID); ok {
			return id, true
		}
	}
	return "", false
}

// reachable reports whether a directed path exists from one node to
// another.
func (p *Pipeline) reachable(from, to string) bool {
	for _, id := range p.bfs(func(id string) []*Connection { return p.outgoing[id] }, p.outgoing[from]) {
		if id == to {
			return true
		}
	}
	return false
}

// bfs walks the graph from a seed edge set, returning visited node ids
// in deterministic (visit-then-sorted) order.
func (p *Pipeline) bfs(next func(string) []*Connection, seeds []*Connection) []string {
	visited := make(map[string]bool)
	queue := make([]string, 0)
	for _, c := range seeds {
		if !visited[c.TargetNodeID] {
			visited[c.TargetNodeID] = true
			queue = append(queue, c.TargetNodeID)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(queue))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		result = append(result, id)

		frontier := make([]string, 0)
		for _, c := range next(id) {
			if !visited[c.TargetNodeID] {
				visited[c.TargetNodeID] = true
				frontier = append(frontier, c.TargetNodeID)
			}
		}
		sort.Strings(frontier)
		queue = append(queue, frontier...)
	}
	return result
}

func (p *Pipeline) insertConnection(c *Connection) {
	p.connections[c.ID] = c
	p.outgoing[c.SourceNodeID] = append(p.outgoing[c.SourceNodeID], c)
	p.incoming[c.TargetNodeID] = append(p.incoming[c.TargetNodeID], c)
	p.incomingByPort[c.TargetPortID] = c
	p.outgoingByPort[c.SourcePortID] = append(p.outgoingByPort[c.SourcePortID], c)
}

func (p *Pipeline) dropConnection(c *Connection) {
	delete(p.connections, c.ID)
	p.outgoing[c.SourceNodeID] = removeConn(p.outgoing[c.SourceNodeID], c.ID)
	p.incoming[c.TargetNodeID] = removeConn(p.incoming[c.TargetNodeID], c.ID)
	delete(p.incomingByPort, c.TargetPortID)
	p.outgoingByPort[c.SourcePortID] = removeConn(p.outgoingByPort[c.SourcePortID], c.ID)
}

func (p *Pipeline) connectionList() []*Connection {
	list := make([]*Connection, 0, len(p.connections))
	for _, c := range p.connections {
		list = append(list, c)
	}
	return list
}

func removeConn(list []*Connection, id string) []*Connection {
	out := list[:0]
	for _, c := range list {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func mergeSorted(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
