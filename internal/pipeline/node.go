package pipeline

// NodeType is the closed set of processing-step kinds.
type NodeType string

const (
	NodeTypeWorkflow        NodeType = "Workflow"
	NodeTypeThreshold       NodeType = "Threshold"
	NodeTypeForEach         NodeType = "ForEach"
	NodeTypeConditional     NodeType = "Conditional"
	NodeTypeExternalCommand NodeType = "ExternalCommand"
	NodeTypeDataSource      NodeType = "DataSource"
)

// NodeTypes lists every node type.
var NodeTypes = []NodeType{
	NodeTypeWorkflow,
	NodeTypeThreshold,
	NodeTypeForEach,
	NodeTypeConditional,
	NodeTypeExternalCommand,
	NodeTypeDataSource,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Port is a typed, directioned slot on a node through which one value
// flows. Port ids are globally unique across the pipeline; a port is
// owned by exactly one node and never reused.
type Port struct {
	ID        string
	Name      string
	Type      PortType
	Direction Direction

	// Required applies to inputs only: a required input must have an
	// incoming connection for the pipeline to validate.
	Required bool
}

// Node is a single processing step in a pipeline.
type Node struct {
	ID     string
	Type   NodeType
	Name   string
	Inputs []Port
	Output []Port

	// Config holds node-type-specific parameters (template names,
	// thresholds, command lines, margins ...).
	Config map[string]any

	// X, Y are editor layout coordinates. Execution ignores them; they
	// are kept so the visual state round-trips through serialization.
	X float64
	Y float64
}

// Input returns the input port with the given name.
func (n *Node) Input(name string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Out returns the output port with the given name.
func (n *Node) Out(name string) (Port, bool) {
	for _, p := range n.Output {
		if p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// PortByID returns the port with the given id, searching inputs then
// outputs.
func (n *Node) PortByID(id string) (Port, bool) {
	for _, p := range n.Inputs {
		if p.ID == id {
			return p, true
		}
	}
	for _, p := range n.Output {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	ID           string
	SourceNodeID string
	SourcePortID string
	TargetNodeID string
	TargetPortID string
}
