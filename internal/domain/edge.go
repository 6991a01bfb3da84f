package domain

import "github.com/google/uuid"

// Edge connects two nodes in a workflow graph. SourceHandle distinguishes
// which outgoing branch of the source node the edge is attached to (e.g. a
// condition node's "true"/"false" handles, an approval node's
// "approved"/"rejected" handles); it is empty for nodes with a single output.
type Edge interface {
	ID() uuid.UUID
	FromNodeID() uuid.UUID
	ToNodeID() uuid.UUID
	Type() EdgeType
	Config() map[string]any
	SourceHandle() string
}

type edge struct {
	id           uuid.UUID
	fromNodeID   uuid.UUID
	toNodeID     uuid.UUID
	edgeType     EdgeType
	config       map[string]any
	sourceHandle string
}

// NewEdge creates a detached edge value; use Workflow.UseEdge/AddEdge to
// attach it to an aggregate.
func NewEdge(id, fromNodeID, toNodeID uuid.UUID, edgeType EdgeType, config map[string]any, sourceHandle string) Edge {
	if config == nil {
		config = make(map[string]any)
	}
	return &edge{
		id:           id,
		fromNodeID:   fromNodeID,
		toNodeID:     toNodeID,
		edgeType:     edgeType,
		config:       config,
		sourceHandle: sourceHandle,
	}
}

func (e *edge) ID() uuid.UUID          { return e.id }
func (e *edge) FromNodeID() uuid.UUID  { return e.fromNodeID }
func (e *edge) ToNodeID() uuid.UUID    { return e.toNodeID }
func (e *edge) Type() EdgeType         { return e.edgeType }
func (e *edge) Config() map[string]any { return e.config }
func (e *edge) SourceHandle() string   { return e.sourceHandle }
