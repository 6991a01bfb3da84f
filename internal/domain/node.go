package domain

import "github.com/google/uuid"

// Position is an opaque UI coordinate carried on a node purely for layout
// purposes; the engine never reads it.
type Position struct {
	X float64
	Y float64
}

// Node is a single step in a workflow graph. Its Config map is governed by the
// schema registered for its Type — the domain layer treats it as opaque.
type Node interface {
	ID() uuid.UUID
	Type() NodeType
	Name() string
	Config() map[string]any
	Position() Position
	SetConfig(config map[string]any)
	SetName(name string)
}

type node struct {
	id       uuid.UUID
	nodeType NodeType
	name     string
	config   map[string]any
	position Position
}

// NewNode creates a detached node value; use Workflow.UseNode/AddNode to
// attach it to an aggregate.
func NewNode(id uuid.UUID, nodeType NodeType, name string, config map[string]any, position Position) Node {
	if config == nil {
		config = make(map[string]any)
	}
	return &node{id: id, nodeType: nodeType, name: name, config: config, position: position}
}

func (n *node) ID() uuid.UUID          { return n.id }
func (n *node) Type() NodeType         { return n.nodeType }
func (n *node) Name() string           { return n.name }
func (n *node) Config() map[string]any { return n.config }
func (n *node) Position() Position     { return n.position }

func (n *node) SetConfig(config map[string]any) {
	if config == nil {
		config = make(map[string]any)
	}
	n.config = config
}

func (n *node) SetName(name string) {
	n.name = name
}
