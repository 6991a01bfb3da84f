package websocket

import (
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/bus"
	"github.com/smilemakc/agentflow/internal/domain"
)

// workflowToDTO projects a domain.Workflow aggregate onto its wire shape.
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
// (an in-place save); otherwise a fresh ID is minted. Node/edge/trigger IDs
// in the DTO are client-local identifiers used only to resolve edge
// from/to within this call — the server always mints fresh uuids for them,
// never trusting client-supplied ids for aggregate identity.
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
	return "save-workflow: edge references unknown node id " + string(e)
}

func errUnknownEdgeEndpoint(nodeID string) error {
	return edgeEndpointError(nodeID)
}

// domainEventToDTO projects a persisted domain.Event (the event-sourcing
// record storage holds per execution) onto the same wire shape a live
// bus.ExecutionEvent push uses, so a storage-backed replay after a process
// restart is indistinguishable to the client from a bus catch-up. Lifecycle
// events map one-to-one; bookkeeping-only event types (variable/edge
// events) have no wire counterpart and return nil.
func domainEventToDTO(ev domain.Event) *ExecutionEventDTO {
	dto := &ExecutionEventDTO{
		ExecutionID: ev.ExecutionID().String(),
		WorkflowID:  ev.WorkflowID().String(),
		Timestamp:   ev.Timestamp(),
		Sequence:    ev.SequenceNumber(),
	}
	if ev.NodeID() != uuid.Nil {
		dto.NodeID = ev.NodeID().String()
	}
	data := ev.Data()
	if name, ok := data["node_name"].(string); ok {
		dto.NodeName = name
	}

	switch ev.EventType() {
	case domain.EventTypeExecutionStarted:
		dto.Kind = string(bus.EventExecutionStart)
	case domain.EventTypeExecutionCompleted:
		dto.Kind = string(bus.EventExecutionComplete)
		if vars, ok := data["final_variables"].(map[string]any); ok {
			dto.Result = vars["output"]
		}
	case domain.EventTypeExecutionFailed, domain.EventTypeExecutionCancelled:
		dto.Kind = string(bus.EventExecutionError)
		dto.Error, _ = data["error"].(string)
	case domain.EventTypeNodeStarted:
		dto.Kind = string(bus.EventNodeStart)
	case domain.EventTypeNodeCompleted:
		dto.Kind = string(bus.EventNodeComplete)
		dto.Result = data["output"]
	case domain.EventTypeNodeFailed:
		dto.Kind = string(bus.EventNodeError)
		dto.Error, _ = data["error"].(string)
	default:
		return nil
	}
	return dto
}

// executionEventToDTO projects a bus.ExecutionEvent onto its wire shape.
func executionEventToDTO(ev bus.ExecutionEvent) *ExecutionEventDTO {
	dto := &ExecutionEventDTO{
		Kind:              string(ev.Kind),
		ExecutionID:       ev.ExecutionID,
		WorkflowID:        ev.WorkflowID,
		NodeID:            ev.NodeID,
		NodeName:          ev.NodeName,
		Timestamp:         ev.Timestamp,
		Sequence:          ev.Sequence,
		Result:            ev.Result,
		Error:             ev.Error,
		Applied:           ev.Applied,
		ApprovalRequested: ev.ApprovalRequested,
	}
	if ev.Approval != nil {
		dto.Approval = &ApprovalRequestDTO{
			NodeID:         ev.Approval.NodeID,
			NodeName:       ev.Approval.NodeName,
			PromptMessage:  ev.Approval.PromptMessage,
			DisplayData:    ev.Approval.DisplayData,
			FeedbackPrompt: ev.Approval.FeedbackPrompt,
			TimeoutAt:      ev.Approval.TimeoutAt,
		}
	}
	return dto
}
