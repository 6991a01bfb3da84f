package evolution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/domain"
)

// Apply commits sanitized (a Validate result's Sanitized.Mutations) onto wf
// in place and persists the result. wf is the live in-run aggregate the
// engine holds, so subsequent nodes see the updated workflow while
// already-completed nodes are not revisited — that falls naturally out of
// mutating the same pointer the scheduler already dereferences on every
// node dispatch.
func Apply(ctx context.Context, wf domain.Workflow, sanitized []domain.MutationOp, persist func(context.Context, domain.Workflow) error) error {
	for _, op := range sanitized {
		if err := applyOne(wf, op); err != nil {
			return apperrors.Wrap(apperrors.CodeEvolutionApplyFailed, fmt.Sprintf("applying %s mutation", op.Kind), err)
		}
	}
	if persist != nil {
		if err := persist(ctx, wf); err != nil {
			return apperrors.Wrap(apperrors.CodeEvolutionApplyFailed, "persisting evolved workflow", err)
		}
	}
	return nil
}

func applyOne(wf domain.Workflow, op domain.MutationOp) error {
	switch op.Kind {
	case domain.MutationUpdateNodeConfig:
		nodeID, err := uuid.Parse(op.NodeID)
		if err != nil {
			return err
		}
		n, err := wf.GetNode(nodeID)
		if err != nil {
			return err
		}
		root := rootSegment(op.Path)
		if root == "name" {
			newName, _ := op.Value.(string)
			n.SetName(newName)
			return nil
		}
		cfg := cloneConfig(n.Config())
		cfg[root] = op.Value
		n.SetConfig(cfg)
		return nil

	case domain.MutationUpdatePrompt:
		nodeID, err := uuid.Parse(op.NodeID)
		if err != nil {
			return err
		}
		n, err := wf.GetNode(nodeID)
		if err != nil {
			return err
		}
		cfg := cloneConfig(n.Config())
		cfg[op.Path] = op.Value
		n.SetConfig(cfg)
		return nil

	case domain.MutationUpdateModel:
		nodeID, err := uuid.Parse(op.NodeID)
		if err != nil {
			return err
		}
		n, err := wf.GetNode(nodeID)
		if err != nil {
			return err
		}
		cfg := cloneConfig(n.Config())
		cfg["model"] = op.NewModel
		n.SetConfig(cfg)
		return nil

	case domain.MutationAddNode:
		newID, err := uuid.Parse(op.NewNodeID)
		if err != nil {
			return err
		}
		n := domain.NewNode(newID, op.NodeType, op.NodeName, op.Config, op.Position)
		if err := wf.UseNode(n); err != nil {
			return err
		}
		if op.ConnectFromNodeID != "" {
			fromID, err := uuid.Parse(op.ConnectFromNodeID)
			if err != nil {
				return err
			}
			if _, err := wf.AddEdge(fromID, newID, domain.EdgeTypeDirect, nil, ""); err != nil {
				return err
			}
		}
		if op.ConnectToNodeID != "" {
			toID, err := uuid.Parse(op.ConnectToNodeID)
			if err != nil {
				return err
			}
			if _, err := wf.AddEdge(newID, toID, domain.EdgeTypeDirect, nil, ""); err != nil {
				return err
			}
		}
		return nil

	case domain.MutationRemoveNode:
		nodeID, err := uuid.Parse(op.NodeID)
		if err != nil {
			return err
		}
		return wf.RemoveNode(nodeID)

	case domain.MutationAddEdge:
		edgeID, err := uuid.Parse(op.EdgeID)
		if err != nil {
			return err
		}
		fromID, err := uuid.Parse(op.FromNodeID)
		if err != nil {
			return err
		}
		toID, err := uuid.Parse(op.ToNodeID)
		if err != nil {
			return err
		}
		e := domain.NewEdge(edgeID, fromID, toID, op.EdgeType, nil, op.SourceHandle)
		return wf.UseEdge(e)

	case domain.MutationRemoveEdge:
		edgeID, err := uuid.Parse(op.EdgeID)
		if err != nil {
			return err
		}
		return wf.RemoveEdge(edgeID)

	case domain.MutationUpdateWorkflowSetting:
		value, _ := op.SettingValue.(string)
		switch op.SettingKey {
		case "name":
			wf.SetName(value)
		case "description":
			wf.SetDescription(value)
		case "workingDirectory":
			wf.SetSpecValue("workingDirectory", value)
		}
		return nil

	default:
		return fmt.Errorf("unknown mutation kind %q", op.Kind)
	}
}

func cloneConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

// snapshotWorkflow captures the subset of workflow state evolution history
// records before/after: node configs and names, edges, and settings. Full
// persistence-level fidelity is the storage layer's job; this is a readable
// diff surface for an execution's evolution history.
func snapshotWorkflow(wf domain.Workflow) map[string]any {
	nodes := make([]map[string]any, 0, len(wf.GetAllNodes()))
	for _, n := range wf.GetAllNodes() {
		nodes = append(nodes, map[string]any{
			"id": n.ID().String(), "name": n.Name(), "type": string(n.Type()), "config": n.Config(),
		})
	}
	edges := make([]map[string]any, 0, len(wf.GetAllEdges()))
	for _, e := range wf.GetAllEdges() {
		edges = append(edges, map[string]any{
			"id": e.ID().String(), "from": e.FromNodeID().String(), "to": e.ToNodeID().String(),
			"type": string(e.Type()), "sourceHandle": e.SourceHandle(),
		})
	}
	return map[string]any{
		"name": wf.Name(), "description": wf.Description(),
		"nodes": nodes, "edges": edges, "capturedAt": time.Now(),
	}
}
