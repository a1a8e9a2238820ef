// Package pipeline implements the processing-graph model: typed ports,
// nodes, connections and the Pipeline container.
//
// A Pipeline is a directed acyclic graph. Mutations go through AddNode,
// RemoveNode, AddConnection and RemoveConnection, which enforce the
// structural invariants (port existence and direction, type
// compatibility, single incoming connection per input, no self-loops,
// acyclicity) atomically: on any violation the graph is left unchanged.
//
// ForEach and Conditional nodes express looping and branching at the
// scope level (see internal/scope); the graph itself never contains
// cycles.
package pipeline
