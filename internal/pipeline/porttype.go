package pipeline

// PortType identifies the kind of value flowing through a port.
type PortType string

const (
	PortTypeVolume     PortType = "VOLUME"
	PortTypeObjectList PortType = "OBJECT_LIST"
	PortTypeObject     PortType = "OBJECT"
	PortTypePosition   PortType = "POSITION"
	PortTypeScalar     PortType = "SCALAR"
	PortTypeBoolean    PortType = "BOOLEAN"
	PortTypeString     PortType = "STRING"
	PortTypeFilePath   PortType = "FILE_PATH"
	PortTypeTrigger    PortType = "TRIGGER"
	PortTypeAny        PortType = "ANY"
)

// PortTypes lists every port type in declaration order.
var PortTypes = []PortType{
	PortTypeVolume,
	PortTypeObjectList,
	PortTypeObject,
	PortTypePosition,
	PortTypeScalar,
	PortTypeBoolean,
	PortTypeString,
	PortTypeFilePath,
	PortTypeTrigger,
	PortTypeAny,
}

// Valid reports whether t is one of the known port types.
func (t PortType) Valid() bool {
	for _, known := range PortTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CanConnect reports whether an output port of type src may be connected
// to an input port of type dst. Rules, in priority order:
//
//  1. Identity: any type connects to itself.
//  2. ANY is compatible with every type in either direction.
//  3. TRIGGER as a source connects to any target; it carries no payload
//     and exists purely to express execution ordering.
//  4. OBJECT -> POSITION: an object carries a derivable stage coordinate.
//  5. SCALAR -> BOOLEAN: numeric truthiness.
//  6. STRING <-> FILE_PATH, both directions.
//
// All other pairs are incompatible. This is consulted when a connection
// is created; execution trusts a previously validated graph and never
// re-checks.
func CanConnect(src, dst PortType) bool {
	if src == dst {
		return true
	}
	if src == PortTypeAny || dst == PortTypeAny {
		return true
	}
	if src == PortTypeTrigger {
		return true
	}
	switch {
	case src == PortTypeObject && dst == PortTypePosition:
		return true
	case src == PortTypeScalar && dst == PortTypeBoolean:
		return true
	case src == PortTypeString && dst == PortTypeFilePath:
		return true
	case src == PortTypeFilePath && dst == PortTypeString:
		return true
	}
	return false
}

// Direction marks a port as an input or an output of its node.
type Direction string

const (
	DirectionInput  Direction = "INPUT"
	DirectionOutput Direction = "OUTPUT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionInput || d == DirectionOutput
}
