// Package node holds the executor dispatch table: one Executor per
// registered domain.NodeType, looked up by the scheduler for every ready
// node.
package node

import (
	"context"
	"fmt"

	"github.com/smilemakc/agentflow/internal/agent"
	"github.com/smilemakc/agentflow/internal/domain"
)

// Input is everything an executor needs to run one node once: its own
// config, a read-only reference lookup over already-completed sibling
// outputs, and the ambient execution id/variables.
type Input struct {
	ExecutionID string
	WorkflowID  string
	Node        domain.Node
	Config      map[string]any
	Resolve     func(s string) string // reference.Resolve bound to current outputs
	Emit        func(domain.AgentEvent)

	// Predecessors lists the names of nodes with a live (non-pruned) edge
	// into this node, in no particular order. Used by merge to know which
	// sibling outputs to fold together without hardcoding edge topology.
	Predecessors []string
	// PredecessorOutput looks up a predecessor's already-resolved output by
	// node name; ok is false if that predecessor hasn't produced one (still
	// running, failed, or skipped).
	PredecessorOutput func(nodeName string) (any, bool)

	// Agent resolves the agent adapter a claude-agent/codex-agent node
	// should drive; nil for non-agent node types.
	Agent agent.Adapter

	// Approve suspends the current node until a human responds, a timeout
	// elapses, or ctx is cancelled; used only by approval nodes.
	Approve func(ctx context.Context, req domain.ApprovalRequest, timeoutSeconds float64) (domain.ApprovalResponse, error)

	// Evolve hands a proposed self-mutation to the scheduler's evolution
	// pipeline (shadow-validate, then apply or request approval per
	// AutoApply); used only by the self-reflect node.
	Evolve func(ctx context.Context, evo domain.Evolution) (applied bool, approvalRequested bool, err error)
}

// Output is what a node produces once it reaches a terminal state.
type Output struct {
	Data   any
	Handle string // sourceHandle this node "chose", e.g. "true"/"false"/"approved"/"rejected"; "" if single-output
}

// Executor is the uniform contract every node type implements.
type Executor interface {
	// Validate performs executor-local config checks beyond what the schema
	// registry already enforces (e.g. script syntax).
	Validate(n domain.Node) error
	// Execute runs the node to completion or returns an error. Long-running
	// executors (agents, approvals) must respect ctx cancellation.
	Execute(ctx context.Context, in Input) (Output, error)
}

// Registry is the dispatch table from node type to Executor.
type Registry struct {
	byType map[domain.NodeType]Executor
}

func NewRegistry() *Registry {
	return &Registry{byType: make(map[domain.NodeType]Executor)}
}

func (r *Registry) Register(t domain.NodeType, e Executor) {
	r.byType[t] = e
}

func (r *Registry) Get(t domain.NodeType) (Executor, error) {
	e, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("node: no executor registered for type %q", t)
	}
	return e, nil
}
