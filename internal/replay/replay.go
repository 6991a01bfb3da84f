// Package replay implements the replay planner: given a completed
// execution and a node to resume from, classify the current workflow's
// nodes into what can be reused from that execution's recorded outputs,
// what must re-run, and what is new since that execution happened.
package replay

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/validate"
)

// Classification is the result of planning a replay from a given node.
type Classification struct {
	// Reused holds the ancestors of FromNodeID that completed in the source
	// execution; their recorded outputs seed the next run's node outputs
	// and they start the new run already marked complete.
	Reused []uuid.UUID

	// ReExecuted is FromNodeID and every node reachable forward from it in
	// the current workflow (the reflexive downward closure).
	ReExecuted []uuid.UUID

	// New holds nodes present in the current workflow but absent from the
	// source execution's recorded node set (excluding the input node).
	New []uuid.UUID

	// NodeOutputs seeds the next run: reused node ID -> its recorded output.
	NodeOutputs map[uuid.UUID]map[string]any

	// Warnings are non-fatal node-set drift notices between the source
	// execution and the current workflow.
	Warnings []string

	// Errors are blocking: a required ancestor is missing or did not
	// complete in the source execution. A non-empty Errors means the
	// caller must not start the replay.
	Errors []*apperrors.Error
}

// Plan computes a Classification for resuming wf's execution from
// fromNodeID, given the per-node states recorded by a prior execution of (a
// possibly earlier revision of) the same workflow.
func Plan(wf domain.Workflow, sourceStates map[uuid.UUID]*domain.NodeExecutionState, fromNodeID uuid.UUID) Classification {
	var plan Classification
	plan.NodeOutputs = make(map[uuid.UUID]map[string]any)

	if _, err := wf.GetNode(fromNodeID); err != nil {
		plan.Errors = append(plan.Errors, apperrors.New(apperrors.CodeNotFound,
			fmt.Sprintf("replay target node %s not found in current workflow", fromNodeID)))
		return plan
	}

	ancestors := validate.Ancestors(wf, fromNodeID)
	delete(ancestors, fromNodeID)

	for id := range ancestors {
		state, ok := sourceStates[id]
		if !ok {
			n, _ := wf.GetNode(id)
			name := id.String()
			if n != nil {
				name = n.Name()
			}
			plan.Errors = append(plan.Errors, apperrors.New(apperrors.CodeInvariantViolated,
				fmt.Sprintf("ancestor node %q has no recorded state in the source execution", name)))
			continue
		}
		if state.Status() != domain.NodeStatusCompleted {
			plan.Errors = append(plan.Errors, apperrors.New(apperrors.CodeInvariantViolated,
				fmt.Sprintf("ancestor node %q did not complete in the source execution (status %s)", state.NodeName(), state.Status())))
			continue
		}
		plan.Reused = append(plan.Reused, id)
		plan.NodeOutputs[id] = state.Output()
	}

	plan.ReExecuted = descendants(wf, fromNodeID)

	currentIDs := make(map[uuid.UUID]bool)
	for _, n := range wf.GetAllNodes() {
		currentIDs[n.ID()] = true
		if n.Type() == domain.NodeTypeInput {
			continue
		}
		if _, recorded := sourceStates[n.ID()]; !recorded {
			plan.New = append(plan.New, n.ID())
		}
	}

	for id := range sourceStates {
		if !currentIDs[id] {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("source execution ran node %s which no longer exists in the current workflow", id))
		}
	}
	if len(plan.New) > 0 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("%d node(s) in the current workflow were not present in the source execution", len(plan.New)))
	}

	return plan
}

// descendants returns fromNodeID and every node reachable from it by
// forward edge traversal in the current workflow (the reflexive downward
// closure that must re-execute).
func descendants(wf domain.Workflow, fromNodeID uuid.UUID) []uuid.UUID {
	forward := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range wf.GetAllEdges() {
		forward[e.FromNodeID()] = append(forward[e.FromNodeID()], e.ToNodeID())
	}

	visited := map[uuid.UUID]bool{fromNodeID: true}
	queue := []uuid.UUID{fromNodeID}
	var out []uuid.UUID
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		for _, next := range forward[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return out
}
