// Package validate implements the workflow pre-flight structural checks
//: exactly one input, exactly one output, no orphans, output
// reachable, no duplicate names. It never mutates the workflow.
package validate

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
)

// Result is the outcome of a validation pass.
type Result struct {
	Valid  bool
	Errors []*apperrors.Error
}

// Workflow validates structural invariants required before an execution may
// start. Reachability is computed by forward BFS from the input node over
// every edge; a set of nodes with incoming edges backs the
// INPUT_NOT_CONNECTED and OUTPUT_NOT_CONNECTED checks.
func Workflow(w domain.Workflow) Result {
	var errs []*apperrors.Error

	nodes := w.GetAllNodes()
	edges := w.GetAllEdges()

	byID := make(map[uuid.UUID]domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
	}

	names := make(map[string][]uuid.UUID)
	var inputIDs, outputIDs []uuid.UUID
	for _, n := range nodes {
		names[n.Name()] = append(names[n.Name()], n.ID())
		switch n.Type() {
		case domain.NodeTypeInput:
			inputIDs = append(inputIDs, n.ID())
		case domain.NodeTypeOutput:
			outputIDs = append(outputIDs, n.ID())
		}
	}

	switch len(inputIDs) {
	case 0:
		errs = append(errs, apperrors.New(apperrors.CodeMissingInput, "workflow must have exactly one input node"))
	case 1:
	default:
		errs = append(errs, apperrors.New(apperrors.CodeDuplicateInput, fmt.Sprintf("workflow has %d input nodes, expected 1", len(inputIDs))))
	}

	switch len(outputIDs) {
	case 0:
		errs = append(errs, apperrors.New(apperrors.CodeMissingOutput, "workflow must have exactly one output node"))
	case 1:
	default:
		errs = append(errs, apperrors.New(apperrors.CodeDuplicateOutput, fmt.Sprintf("workflow has %d output nodes, expected 1", len(outputIDs))))
	}

	for name, ids := range names {
		if len(ids) > 1 {
			errs = append(errs, apperrors.New(apperrors.CodeDuplicateName, fmt.Sprintf("node name %q used by %d nodes", name, len(ids))))
		}
	}

	forward := make(map[uuid.UUID][]uuid.UUID)
	hasIncoming := make(map[uuid.UUID]bool)
	for _, e := range edges {
		forward[e.FromNodeID()] = append(forward[e.FromNodeID()], e.ToNodeID())
		hasIncoming[e.ToNodeID()] = true
	}

	// Only meaningful with exactly one input; skip reachability otherwise
	// since MISSING_INPUT/DUPLICATE_INPUT already cover the defect.
	if len(inputIDs) == 1 {
		inputID := inputIDs[0]
		reachable := bfs(inputID, forward)

		if hasIncoming[inputID] {
			errs = append(errs, apperrors.New(apperrors.CodeInputNotConnected, "input node must not have incoming edges"))
		}

		for _, n := range nodes {
			if n.ID() == inputID {
				continue
			}
			if n.Type() == domain.NodeTypeOutput {
				continue // checked separately below
			}
			if !reachable[n.ID()] {
				errs = append(errs, apperrors.New(apperrors.CodeOrphanedNode, fmt.Sprintf("node %q is not reachable from the input node", n.Name())))
			}
		}

		if len(outputIDs) == 1 {
			outputID := outputIDs[0]
			if !hasIncoming[outputID] {
				errs = append(errs, apperrors.New(apperrors.CodeOutputNotConnected, "output node must have at least one incoming edge"))
			}
			if !reachable[outputID] {
				errs = append(errs, apperrors.New(apperrors.CodeOutputNotReachable, "output node is not reachable from the input node"))
			}
		}
	}

	// Defensive: edges must reference existing nodes (domain.ValidateStructure
	// checks this too, but the validator re-asserts it as a stable coded error).
	for _, e := range edges {
		if _, ok := byID[e.FromNodeID()]; !ok {
			errs = append(errs, apperrors.New(apperrors.CodeInvariantViolated, fmt.Sprintf("edge %s references missing source node", e.ID())))
		}
		if _, ok := byID[e.ToNodeID()]; !ok {
			errs = append(errs, apperrors.New(apperrors.CodeInvariantViolated, fmt.Sprintf("edge %s references missing destination node", e.ID())))
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// bfs returns the set of node IDs reachable from start by following forward
// edges, including start itself.
func bfs(start uuid.UUID, forward map[uuid.UUID][]uuid.UUID) map[uuid.UUID]bool {
	visited := map[uuid.UUID]bool{start: true}
	queue := []uuid.UUID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range forward[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// Predecessors returns the reverse adjacency (node -> direct predecessors),
// used by Ancestors, which replay classification calls.
func Predecessors(w domain.Workflow) map[uuid.UUID][]uuid.UUID {
	rev := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range w.GetAllEdges() {
		rev[e.ToNodeID()] = append(rev[e.ToNodeID()], e.FromNodeID())
	}
	return rev
}

// Ancestors returns every node reachable by walking predecessor edges
// backward from id, including id itself.
func Ancestors(w domain.Workflow, id uuid.UUID) map[uuid.UUID]bool {
	rev := Predecessors(w)
	visited := map[uuid.UUID]bool{id: true}
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, prev := range rev[cur] {
			if !visited[prev] {
				visited[prev] = true
				queue = append(queue, prev)
			}
		}
	}
	return visited
}
