// Package scope classifies pipeline nodes into the bodies of ForEach
// loops and the branches of Conditional nodes.
//
// The graph itself is acyclic; looping and branching are expressed by
// which nodes hang off a construct's dedicated output ports. The
// resolver performs forward reachability from those ports and records,
// for every node, the chain of constructs that claim it. The executor
// runs top-level nodes once, in topological order, and delegates scoped
// nodes to their owning construct's runner.
package scope
