package pipeline

import "fmt"

// Well-known port names. Runners and the scope resolver address ports by
// these names, so the factory is the single place that defines each node
// type's port layout.
const (
	PortCollection     = "collection"
	PortCurrentItem    = "current_item"
	PortIndex          = "index"
	PortCompleted      = "completed"
	PortValue          = "value"
	PortThresholdIn    = "threshold"
	PortTrueBranch     = "true_branch"
	PortFalseBranch    = "false_branch"
	PortVolume         = "volume"
	PortPosition       = "position"
	PortBoundingObject = "bounding_object"
	PortTrigger        = "trigger"
	PortObjects        = "objects"
	PortMask           = "mask"
	PortCount          = "count"
	PortInput          = "input"
	PortResult         = "result"
)

// PortID builds the globally unique id for a named port on a node.
func PortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}

// NewNode builds a node of the given type with its standard port layout.
func NewNode(id string, nodeType NodeType, name string) (*Node, error) {
	n := &Node{
		ID:     id,
		Type:   nodeType,
		Name:   name,
		Config: make(map[string]any),
	}

	in := func(portName string, t PortType, required bool) {
		n.Inputs = append(n.Inputs, Port{
			ID:        PortID(id, portName),
			Name:      portName,
			Type:      t,
			Direction: DirectionInput,
			Required:  required,
		})
	}
	out := func(portName string, t PortType) {
		n.Output = append(n.Output, Port{
			ID:        PortID(id, portName),
			Name:      portName,
			Type:      t,
			Direction: DirectionOutput,
		})
	}

	switch nodeType {
	case NodeTypeWorkflow:
		in(PortPosition, PortTypePosition, false)
		in(PortBoundingObject, PortTypeObject, false)
		in(PortTrigger, PortTypeTrigger, false)
		out(PortVolume, PortTypeVolume)
		out(PortCompleted, PortTypeTrigger)
	case NodeTypeThreshold:
		in(PortVolume, PortTypeVolume, false)
		out(PortObjects, PortTypeObjectList)
		out(PortMask, PortTypeVolume)
		out(PortCount, PortTypeScalar)
	case NodeTypeForEach:
		in(PortCollection, PortTypeObjectList, true)
		out(PortCurrentItem, PortTypeObject)
		out(PortIndex, PortTypeScalar)
		out(PortCompleted, PortTypeTrigger)
	case NodeTypeConditional:
		in(PortValue, PortTypeScalar, true)
		in(PortThresholdIn, PortTypeScalar, false)
		out(PortTrueBranch, PortTypeAny)
		out(PortFalseBranch, PortTypeAny)
	case NodeTypeExternalCommand:
		in(PortInput, PortTypeAny, true)
		out(PortResult, PortTypeAny)
	case NodeTypeDataSource:
		out(PortVolume, PortTypeVolume)
		out(PortPosition, PortTypePosition)
	default:
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}

	return n, nil
}
