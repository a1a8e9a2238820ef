package scope

import (
	"fmt"
	"sort"

	"github.com/scopeflow/scopeflow/internal/pipeline"
)

// Branch selects one side of a Conditional.
type Branch string

const (
	BranchTrue  Branch = "true"
	BranchFalse Branch = "false"
)

// Set is the result of resolving a pipeline's control scopes. It is a
// read-only analysis of the graph; the graph is not modified.
type Set struct {
	topo   []string
	bodies map[string]map[string]bool // ForEach id -> body members
	trues  map[string]map[string]bool // Conditional id -> true-branch members
	falses map[string]map[string]bool // Conditional id -> false-branch members
	owners map[string][]string        // node id -> owning construct ids, outermost first
}

// Resolve analyzes the pipeline and returns its scope set. The pipeline
// must be acyclic.
func Resolve(p *pipeline.Pipeline) (*Set, error) {
	topo, err := p.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("scope resolution requires an acyclic graph: %w", err)
	}

	s := &Set{
		topo:   topo,
		bodies: make(map[string]map[string]bool),
		trues:  make(map[string]map[string]bool),
		falses: make(map[string]map[string]bool),
		owners: make(map[string][]string),
	}

	for _, id := range p.NodeIDs() {
		n, _ := p.Node(id)
		switch n.Type {
		case pipeline.NodeTypeForEach:
			s.bodies[id] = resolveLoopBody(p, n)
		case pipeline.NodeTypeConditional:
			s.trues[id] = reachableFromPort(p, n, pipeline.PortTrueBranch)
			s.falses[id] = reachableFromPort(p, n, pipeline.PortFalseBranch)
		}
	}

	s.recordOwners()
	return s, nil
}

// resolveLoopBody computes the body of a ForEach node: everything
// reachable from its current_item and index outputs, minus everything
// reachable from its completed output. The completed trigger marks the
// boundary between "inside the loop" and "after the loop".
func resolveLoopBody(p *pipeline.Pipeline, n *pipeline.Node) map[string]bool {
	body := reachableFromPort(p, n, pipeline.PortCurrentItem)
	for id := range reachableFromPort(p, n, pipeline.PortIndex) {
		body[id] = true
	}
	for id := range reachableFromPort(p, n, pipeline.PortCompleted) {
		delete(body, id)
	}
	delete(body, n.ID)
	return body
}

func reachableFromPort(p *pipeline.Pipeline, n *pipeline.Node, portName string) map[string]bool {
	set := make(map[string]bool)
	port, ok := n.Out(portName)
	if !ok {
		return set
	}
	for _, id := range p.DownstreamFromPort(n.ID, port.ID) {
		set[id] = true
	}
	return set
}

// recordOwners builds the per-node owner chains. A node may be claimed
// by several constructs at once (a loop nested in a branch, or a merge
// node fed by both branches of the same Conditional). Owners are
// ordered outermost first.
func (s *Set) recordOwners() {
	claim := func(owner string, members map[string]bool) {
		for id := range members {
			s.owners[id] = append(s.owners[id], owner)
		}
	}
	for owner, members := range s.bodies {
		claim(owner, members)
	}
	for owner, members := range s.trues {
		claim(owner, members)
	}
	for owner, members := range s.falses {
		claim(owner, members)
	}

	for id, chain := range s.owners {
		chain = dedupe(chain)
		sort.Slice(chain, func(i, j int) bool {
			outer := s.contains(chain[i], chain[j])
			inner := s.contains(chain[j], chain[i])
			if outer != inner {
				return outer
			}
			return chain[i] < chain[j]
		})
		s.owners[id] = chain
	}
}

// contains reports whether construct a's scope claims construct b.
func (s *Set) contains(a, b string) bool {
	for _, members := range []map[string]bool{s.bodies[a], s.trues[a], s.falses[a]} {
		if members[b] {
			return true
		}
	}
	return false
}

// Owners returns the chain of constructs claiming the given node,
// outermost first. An empty chain means the node is top-level.
func (s *Set) Owners(nodeID string) []string {
	return s.owners[nodeID]
}

// InScope reports whether the node is claimed by any construct.
func (s *Set) InScope(nodeID string) bool {
	return len(s.owners[nodeID]) > 0
}

// BodySorted returns the body of the given ForEach, topologically
// ordered within the member subset. Nested constructs' members are
// excluded: the loop runs its direct members and each nested construct
// drives its own scope.
func (s *Set) BodySorted(ownerID string) []string {
	return s.restrict(s.bodies[ownerID], ownerID)
}

// BranchSorted returns one branch of the given Conditional,
// topologically ordered within the member subset.
func (s *Set) BranchSorted(ownerID string, branch Branch) []string {
	if branch == BranchTrue {
		return s.restrict(s.trues[ownerID], ownerID)
	}
	return s.restrict(s.falses[ownerID], ownerID)
}

// TopLevelNodeIDs returns the full topological order with every node
// claimed by any scope removed. These are the nodes the executor runs
// directly, once, in order.
func (s *Set) TopLevelNodeIDs() []string {
	top := make([]string, 0, len(s.topo))
	for _, id := range s.topo {
		if !s.InScope(id) {
			top = append(top, id)
		}
	}
	return top
}

// restrict filters the full topological order down to members whose
// innermost owner is ownerID, preserving order. Members claimed by a
// construct nested deeper than ownerID are excluded; that construct's
// own runner drives them. A merge node claimed by both branches of one
// Conditional has that Conditional as its single innermost owner and so
// appears in both branch listings.
func (s *Set) restrict(members map[string]bool, ownerID string) []string {
	ordered := make([]string, 0, len(members))
	for _, id := range s.topo {
		if !members[id] {
			continue
		}
		chain := s.owners[id]
		if len(chain) == 0 || chain[len(chain)-1] != ownerID {
			continue
		}
		ordered = append(ordered, id)
	}
	return ordered
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
