package bus

import (
	"time"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
)

// EventKind tags the variant of an ExecutionEvent, the bus-level envelope
// every subscriber (websocket clients, the durable journal, replay readers)
// consumes uniformly.
type EventKind string

const (
	EventExecutionStart    EventKind = "execution-start"
	EventNodeStart         EventKind = "node-start"
	EventNodeOutput        EventKind = "node-output"
	EventNodeWaiting       EventKind = "node-waiting"
	EventNodeComplete      EventKind = "node-complete"
	EventNodeError         EventKind = "node-error"
	EventExecutionComplete EventKind = "execution-complete"
	EventExecutionError    EventKind = "execution-error"
	EventValidationError   EventKind = "validation-error"
	EventNodeEvolution     EventKind = "node-evolution"
)

// ExecutionEvent is one immutable entry in an execution's journal.
type ExecutionEvent struct {
	Kind        EventKind
	ExecutionID string
	WorkflowID  string
	NodeID      string
	NodeName    string
	Timestamp   time.Time
	Sequence    int64

	AgentEvent       *domain.AgentEvent
	Approval         *domain.ApprovalRequest
	Result           any
	Error            string
	ValidationErrors []*apperrors.Error

	Evolution          *domain.Evolution
	Applied            bool
	ApprovalRequested  bool
	EvolutionErrors    []*apperrors.Error
}

func ExecutionStart(executionID, workflowID string) ExecutionEvent {
	return ExecutionEvent{Kind: EventExecutionStart, ExecutionID: executionID, WorkflowID: workflowID, Timestamp: time.Now()}
}

func NodeStart(executionID, nodeID, nodeName string) ExecutionEvent {
	return ExecutionEvent{Kind: EventNodeStart, ExecutionID: executionID, NodeID: nodeID, NodeName: nodeName, Timestamp: time.Now()}
}

func NodeOutput(executionID, nodeID string, ev domain.AgentEvent) ExecutionEvent {
	return ExecutionEvent{Kind: EventNodeOutput, ExecutionID: executionID, NodeID: nodeID, AgentEvent: &ev, Timestamp: time.Now()}
}

func NodeWaiting(executionID, nodeID string, approval domain.ApprovalRequest) ExecutionEvent {
	return ExecutionEvent{Kind: EventNodeWaiting, ExecutionID: executionID, NodeID: nodeID, Approval: &approval, Timestamp: time.Now()}
}

func NodeComplete(executionID, nodeID string, result any) ExecutionEvent {
	return ExecutionEvent{Kind: EventNodeComplete, ExecutionID: executionID, NodeID: nodeID, Result: result, Timestamp: time.Now()}
}

func NodeError(executionID, nodeID, errMsg string) ExecutionEvent {
	return ExecutionEvent{Kind: EventNodeError, ExecutionID: executionID, NodeID: nodeID, Error: errMsg, Timestamp: time.Now()}
}

func ExecutionComplete(executionID string, result any) ExecutionEvent {
	return ExecutionEvent{Kind: EventExecutionComplete, ExecutionID: executionID, Result: result, Timestamp: time.Now()}
}

func ExecutionError(executionID, errMsg string) ExecutionEvent {
	return ExecutionEvent{Kind: EventExecutionError, ExecutionID: executionID, Error: errMsg, Timestamp: time.Now()}
}

func ValidationError(executionID string, errs []*apperrors.Error) ExecutionEvent {
	return ExecutionEvent{Kind: EventValidationError, ExecutionID: executionID, ValidationErrors: errs, Timestamp: time.Now()}
}

func NodeEvolution(executionID, nodeID string, evo domain.Evolution, applied, approvalRequested bool, errs []*apperrors.Error) ExecutionEvent {
	return ExecutionEvent{
		Kind: EventNodeEvolution, ExecutionID: executionID, NodeID: nodeID,
		Evolution: &evo, Applied: applied, ApprovalRequested: approvalRequested,
		EvolutionErrors: errs, Timestamp: time.Now(),
	}
}
