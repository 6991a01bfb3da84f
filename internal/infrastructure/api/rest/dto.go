package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/domain"
)

// WorkflowDTO is the wire shape for a workflow, matching the persisted
// fields of the workflow aggregate: identity, metadata and its
// node/edge/trigger children.
type WorkflowDTO struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name" validate:"required,min=1,max=200"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty" validate:"max=2000"`
	Spec        map[string]any    `json:"spec,omitempty"`
	State       string            `json:"state,omitempty"`
	Nodes       []WorkflowNodeDTO `json:"nodes" validate:"dive"`
	Edges       []WorkflowEdgeDTO `json:"edges" validate:"dive"`
	Triggers    []WorkflowTrigDTO `json:"triggers,omitempty" validate:"dive"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt,omitempty"`
}

type WorkflowNodeDTO struct {
	ID     string         `json:"id" validate:"required"`
	Type   string         `json:"type" validate:"required"`
	Name   string         `json:"name" validate:"required,max=200"`
	Config map[string]any `json:"config,omitempty"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
}

type WorkflowEdgeDTO struct {
	ID           string         `json:"id"`
	From         string         `json:"from" validate:"required"`
	To           string         `json:"to" validate:"required"`
	Type         string         `json:"type"`
	Config       map[string]any `json:"config,omitempty"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
}

type WorkflowTrigDTO struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// workflowToDTO projects a domain.Workflow aggregate onto its wire shape,
// the same projection websocket.workflowToDTO performs for the socket
// transport — kept as a separate copy here since the two transports own
// independent wire contracts even though today they agree field-for-field.
func workflowToDTO(wf domain.Workflow) *WorkflowDTO {
	dto := &WorkflowDTO{
		ID:          wf.ID().String(),
		Name:        wf.Name(),
		Version:     wf.Version(),
		Description: wf.Description(),
		Spec:        wf.Spec(),
		State:       string(wf.State()),
		CreatedAt:   wf.CreatedAt(),
		UpdatedAt:   wf.UpdatedAt(),
	}

	for _, n := range wf.GetAllNodes() {
		pos := n.Position()
		dto.Nodes = append(dto.Nodes, WorkflowNodeDTO{
			ID:     n.ID().String(),
			Type:   string(n.Type()),
			Name:   n.Name(),
			Config: n.Config(),
			X:      pos.X,
			Y:      pos.Y,
		})
	}
	for _, e := range wf.GetAllEdges() {
		dto.Edges = append(dto.Edges, WorkflowEdgeDTO{
			ID:           e.ID().String(),
			From:         e.FromNodeID().String(),
			To:           e.ToNodeID().String(),
			Type:         string(e.Type()),
			Config:       e.Config(),
			SourceHandle: e.SourceHandle(),
		})
	}
	for _, t := range wf.GetAllTriggers() {
		dto.Triggers = append(dto.Triggers, WorkflowTrigDTO{
			ID:     t.ID().String(),
			Type:   string(t.Type()),
			Config: t.Config(),
		})
	}

	return dto
}

// workflowFromDTO rebuilds a domain.Workflow from its wire shape. If
// existing is non-nil, the new aggregate keeps existing's ID and CreatedAt
// (an in-place update); otherwise a fresh ID is minted. Node/edge/trigger
// ids in the DTO are client-local identifiers, resolved only to wire edge
// endpoints within this call: the server always mints fresh uuids for
// aggregate identity, never trusting a client-supplied one.
func workflowFromDTO(dto *WorkflowDTO, existing domain.Workflow) (domain.Workflow, error) {
	id := uuid.New()
	createdAt := time.Now()
	if existing != nil {
		id = existing.ID()
		createdAt = existing.CreatedAt()
	}

	nodeIDs := make(map[string]uuid.UUID, len(dto.Nodes))
	nodes := make([]domain.Node, 0, len(dto.Nodes))
	for _, n := range dto.Nodes {
		nid := uuid.New()
		nodeIDs[n.ID] = nid
		nodes = append(nodes, domain.NewNode(nid, domain.NodeType(n.Type), n.Name, n.Config, domain.Position{X: n.X, Y: n.Y}))
	}

	edges := make([]domain.Edge, 0, len(dto.Edges))
	for _, e := range dto.Edges {
		from, ok := nodeIDs[e.From]
		if !ok {
			return nil, errUnknownEdgeEndpoint(e.From)
		}
		to, ok := nodeIDs[e.To]
		if !ok {
			return nil, errUnknownEdgeEndpoint(e.To)
		}
		edges = append(edges, domain.NewEdge(uuid.New(), from, to, domain.EdgeType(e.Type), e.Config, e.SourceHandle))
	}

	triggers := make([]domain.Trigger, 0, len(dto.Triggers))
	for _, t := range dto.Triggers {
		triggers = append(triggers, domain.NewTrigger(uuid.New(), domain.TriggerType(t.Type), t.Config))
	}

	state := domain.WorkflowStateDraft
	if dto.State != "" {
		state = domain.WorkflowState(dto.State)
	}

	return domain.ReconstructWorkflow(id, dto.Name, dto.Version, dto.Description, dto.Spec,
		state, createdAt, time.Now(), nodes, edges, triggers)
}

type edgeEndpointError string

func (e edgeEndpointError) Error() string {
	return "workflow: edge references unknown node id " + string(e)
}

func errUnknownEdgeEndpoint(nodeID string) error {
	return edgeEndpointError(nodeID)
}

// ExecutionSummaryDTO is the persisted summary of one execution:
// status folds the aggregate's richer ExecutionPhase down to the three
// wire states a client needs to render.
type ExecutionSummaryDTO struct {
	ExecutionID string                       `json:"executionId"`
	WorkflowID  string                       `json:"workflowId"`
	Status      string                       `json:"status"`
	FinalResult any                          `json:"finalResult,omitempty"`
	Error       string                       `json:"error,omitempty"`
	Nodes       map[string]NodeSummaryDTO    `json:"nodes"`
}

type NodeSummaryDTO struct {
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func executionStatus(phase domain.ExecutionPhase) string {
	switch phase {
	case domain.ExecutionPhaseCompleted:
		return "complete"
	case domain.ExecutionPhaseFailed, domain.ExecutionPhaseCancelled:
		return "error"
	default:
		return "running"
	}
}

// executionToSummaryDTO projects a rebuilt domain.Execution onto the
// persisted-state shape. finalResult is best-effort: it comes from the
// output node's recorded output, since the aggregate itself only tracks
// per-node outputs, not a single execution-level result value.
func executionToSummaryDTO(wf domain.Workflow, exec domain.Execution) *ExecutionSummaryDTO {
	dto := &ExecutionSummaryDTO{
		ExecutionID: exec.ID().String(),
		WorkflowID:  exec.WorkflowID().String(),
		Status:      executionStatus(exec.Phase()),
		Error:       exec.Error(),
		Nodes:       make(map[string]NodeSummaryDTO),
	}

	for _, n := range wf.GetAllNodes() {
		state, ok := exec.GetNodeState(n.ID())
		if !ok {
			continue
		}
		dto.Nodes[n.ID().String()] = NodeSummaryDTO{
			Status:      string(state.Status()),
			StartedAt:   state.StartedAt(),
			CompletedAt: state.FinishedAt(),
		}
		if n.Type() == domain.NodeTypeOutput {
			if out, ok := exec.GetNodeOutput(n.ID()); ok {
				if v, ok := out.Get("value"); ok {
					dto.FinalResult = v
				} else {
					dto.FinalResult = out.All()
				}
			}
		}
	}

	return dto
}

// ExecutionEventRecordDTO is one entry of the append-only journal returned
// by the execution events endpoint: {timestamp, event}.
type ExecutionEventRecordDTO struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     map[string]any `json:"event"`
}

// domainEventToRecord projects a domain.Event (the durable event-sourcing
// record) onto the wire's {timestamp, event} shape.
func domainEventToRecord(ev domain.Event) ExecutionEventRecordDTO {
	body := map[string]any{
		"type": string(ev.EventType()),
	}
	if nodeID := ev.NodeID(); nodeID != uuid.Nil {
		body["nodeId"] = nodeID.String()
	}
	for k, v := range ev.Data() {
		body[k] = v
	}
	return ExecutionEventRecordDTO{Timestamp: ev.Timestamp(), Event: body}
}
