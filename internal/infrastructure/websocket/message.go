package websocket

import (
	"encoding/json"
	"time"
)

// Client -> server message types (a tagged union keyed on Type).
const (
	MsgStartExecution     = "start-execution"
	MsgInterrupt          = "interrupt"
	MsgSubscribeExecution = "subscribe-execution"
	MsgSubmitApproval     = "submit-approval"
	MsgSubmitEvolution    = "submit-evolution"
	MsgReplayExecution    = "replay-execution"
	MsgSaveWorkflow       = "save-workflow"
)

// Server -> client push types.
const (
	PushWorkflows      = "workflows"
	PushWorkflowUpdate = "workflow-updated"
	PushWorkflowSaved  = "workflow-saved"
	PushEvent          = "event"
)

// ClientMessage is the envelope for every client->server control message.
// Only the fields relevant to Type are populated; unused fields are zero.
type ClientMessage struct {
	Type string `json:"type"`

	// start-execution
	WorkflowID string `json:"workflowId,omitempty"`
	Input      string `json:"input,omitempty"`

	// interrupt, subscribe-execution, submit-approval, submit-evolution
	ExecutionID string `json:"executionId,omitempty"`

	// subscribe-execution
	AfterTimestamp *time.Time `json:"afterTimestamp,omitempty"`

	// submit-approval, submit-evolution
	NodeID           string            `json:"nodeId,omitempty"`
	ApprovalResponse *ApprovalResponse `json:"response,omitempty"`

	// replay-execution
	SourceExecutionID string `json:"sourceExecutionId,omitempty"`
	FromNodeID        string `json:"fromNodeId,omitempty"`

	// save-workflow
	Workflow *WorkflowDTO `json:"workflow,omitempty"`
}

// ApprovalResponse covers both submit-approval (Approved/Feedback) and
// submit-evolution (Approved/Feedback/RespondedAt) payloads; RespondedAt is
// simply ignored by handlers that don't need it.
type ApprovalResponse struct {
	Approved    bool       `json:"approved"`
	Feedback    string     `json:"feedback,omitempty"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

// ServerMessage is the envelope for every server->client push.
type ServerMessage struct {
	Type string `json:"type"`

	Workflows []*WorkflowDTO `json:"workflows,omitempty"`
	Workflow  *WorkflowDTO   `json:"workflow,omitempty"`

	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`

	Event *ExecutionEventDTO `json:"event,omitempty"`
}

func newWorkflowsPush(workflows []*WorkflowDTO) *ServerMessage {
	return &ServerMessage{Type: PushWorkflows, Workflows: workflows}
}

func newWorkflowUpdatedPush(wf *WorkflowDTO) *ServerMessage {
	return &ServerMessage{Type: PushWorkflowUpdate, Workflow: wf}
}

func newWorkflowSavedPush(wf *WorkflowDTO, err error) *ServerMessage {
	msg := &ServerMessage{Type: PushWorkflowSaved, Success: err == nil, Workflow: wf}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

func newEventPush(ev *ExecutionEventDTO) *ServerMessage {
	return &ServerMessage{Type: PushEvent, Event: ev}
}

// WorkflowDTO is the JSON wire shape for a workflow: what clients send on
// save-workflow and what the server pushes back on workflows/
// workflow-updated/workflow-saved. It is intentionally flatter than
// domain.Workflow's aggregate shape so the wire format doesn't leak the
// domain package's uuid.UUID/NodeType/EdgeType types directly.
type WorkflowDTO struct {
	ID          string             `json:"id,omitempty"`
	Name        string             `json:"name"`
	Version     string             `json:"version"`
	Description string             `json:"description,omitempty"`
	Spec        map[string]any     `json:"spec,omitempty"`
	State       string             `json:"state,omitempty"`
	Nodes       []WorkflowNodeDTO  `json:"nodes"`
	Edges       []WorkflowEdgeDTO  `json:"edges"`
	Triggers    []WorkflowTrigDTO  `json:"triggers"`
	CreatedAt   time.Time          `json:"createdAt,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt,omitempty"`
}

type WorkflowNodeDTO struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
}

type WorkflowEdgeDTO struct {
	ID           string         `json:"id"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	Type         string         `json:"type"`
	Config       map[string]any `json:"config,omitempty"`
	SourceHandle string         `json:"sourceHandle,omitempty"`
}

type WorkflowTrigDTO struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// ExecutionEventDTO is the JSON projection of a bus.ExecutionEvent pushed to
// subscribed clients under the "event" push type.
type ExecutionEventDTO struct {
	Kind        string    `json:"kind"`
	ExecutionID string    `json:"executionId"`
	WorkflowID  string    `json:"workflowId,omitempty"`
	NodeID      string    `json:"nodeId,omitempty"`
	NodeName    string    `json:"nodeName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Sequence    int64     `json:"sequence"`

	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	Approval *ApprovalRequestDTO `json:"approval,omitempty"`

	Applied           bool `json:"applied,omitempty"`
	ApprovalRequested bool `json:"approvalRequested,omitempty"`
}

type ApprovalRequestDTO struct {
	NodeID         string         `json:"nodeId,omitempty"`
	NodeName       string         `json:"nodeName,omitempty"`
	PromptMessage  string         `json:"promptMessage,omitempty"`
	DisplayData    map[string]any `json:"displayData,omitempty"`
	FeedbackPrompt string         `json:"feedbackPrompt,omitempty"`
	TimeoutAt      *time.Time     `json:"timeoutAt,omitempty"`
}

// decodeClientMessage unmarshals a raw client frame into a ClientMessage.
func decodeClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
