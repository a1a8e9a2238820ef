package pipeline

import (
	"encoding/json"
	"fmt"
)

// Dict types mirror the persisted graph format. The structure is what
// the editor reads and writes; layout coordinates are carried so the
// visual state round-trips losslessly.

// PortDict is the serialized form of a Port.
type PortDict struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PortType  string `json:"port_type"`
	Direction string `json:"direction"`
	Required  bool   `json:"required"`
}

// NodeDict is the serialized form of a Node.
type NodeDict struct {
	ID       string         `json:"id"`
	NodeType string         `json:"node_type"`
	Name     string         `json:"name"`
	Inputs   []PortDict     `json:"inputs"`
	Outputs  []PortDict     `json:"outputs"`
	Config   map[string]any `json:"config"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
}

// ConnectionDict is the serialized form of a Connection.
type ConnectionDict struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"`
	SourcePortID string `json:"source_port_id"`
	TargetNodeID string `json:"target_node_id"`
	TargetPortID string `json:"target_port_id"`
}

// PipelineDict is the serialized form of a Pipeline.
type PipelineDict struct {
	Name        string           `json:"name"`
	Nodes       []NodeDict       `json:"nodes"`
	Connections []ConnectionDict `json:"connections"`
}

// ToDict converts the pipeline to its serialized form. Nodes and
// connections are emitted sorted by id so the output is deterministic.
func (p *Pipeline) ToDict() *PipelineDict {
	d := &PipelineDict{Name: p.Name}

	for _, id := range p.NodeIDs() {
		n := p.nodes[id]
		nd := NodeDict{
			ID:       n.ID,
			NodeType: string(n.Type),
			Name:     n.Name,
			Inputs:   make([]PortDict, 0, len(n.Inputs)),
			Outputs:  make([]PortDict, 0, len(n.Output)),
			Config:   n.Config,
			X:        n.X,
			Y:        n.Y,
		}
		for _, port := range n.Inputs {
			nd.Inputs = append(nd.Inputs, portDict(port))
		}
		for _, port := range n.Output {
			nd.Outputs = append(nd.Outputs, portDict(port))
		}
		d.Nodes = append(d.Nodes, nd)
	}

	for _, id := range p.ConnectionIDs() {
		c := p.connections[id]
		d.Connections = append(d.Connections, ConnectionDict{
			ID:           c.ID,
			SourceNodeID: c.SourceNodeID,
			SourcePortID: c.SourcePortID,
			TargetNodeID: c.TargetNodeID,
			TargetPortID: c.TargetPortID,
		})
	}

	return d
}

// FromDict rebuilds a pipeline from its serialized form. Stored data is
// not trusted: node payloads go through AddNode and connections are
// re-indexed, so a corrupted document surfaces as an error here rather
// than as undefined behavior at run time. Connections are inserted
// without edit-time re-validation; problems on stored data are surfaced
// by Validate instead.
func FromDict(d *PipelineDict) (*Pipeline, error) {
	if d == nil {
		return nil, fmt.Errorf("pipeline document is nil")
	}
	p := New(d.Name)

	for _, nd := range d.Nodes {
		n := &Node{
			ID:     nd.ID,
			Type:   NodeType(nd.NodeType),
			Name:   nd.Name,
			Config: nd.Config,
			X:      nd.X,
			Y:      nd.Y,
		}
		if n.Config == nil {
			n.Config = make(map[string]any)
		}
		for _, pd := range nd.Inputs {
			n.Inputs = append(n.Inputs, portFromDict(pd))
		}
		for _, pd := range nd.Outputs {
			n.Output = append(n.Output, portFromDict(pd))
		}
		if err := p.AddNode(n); err != nil {
			return nil, fmt.Errorf("invalid node %s: %w", nd.ID, err)
		}
	}

	for _, cd := range d.Connections {
		if cd.ID == "" {
			return nil, fmt.Errorf("connection without id")
		}
		if _, exists := p.connections[cd.ID]; exists {
			return nil, fmt.Errorf("duplicate connection id: %s", cd.ID)
		}
		if _, taken := p.incomingByPort[cd.TargetPortID]; taken {
			return nil, fmt.Errorf("input port %s has multiple incoming connections", cd.TargetPortID)
		}
		p.insertConnection(&Connection{
			ID:           cd.ID,
			SourceNodeID: cd.SourceNodeID,
			SourcePortID: cd.SourcePortID,
			TargetNodeID: cd.TargetNodeID,
			TargetPortID: cd.TargetPortID,
		})
	}

	return p, nil
}

// MarshalJSON serializes the pipeline through its dict form.
func (p *Pipeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToDict())
}

// UnmarshalJSON rebuilds the pipeline from its dict form.
func (p *Pipeline) UnmarshalJSON(data []byte) error {
	var d PipelineDict
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to unmarshal pipeline: %w", err)
	}
	rebuilt, err := FromDict(&d)
	if err != nil {
		return err
	}
	*p = *rebuilt
	return nil
}

func portDict(p Port) PortDict {
	return PortDict{
		ID:        p.ID,
		Name:      p.Name,
		PortType:  string(p.Type),
		Direction: string(p.Direction),
		Required:  p.Required,
	}
}

func portFromDict(d PortDict) Port {
	return Port{
		ID:        d.ID,
		Name:      d.Name,
		Type:      PortType(d.PortType),
		Direction: Direction(d.Direction),
		Required:  d.Required,
	}
}
