package evolution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smilemakc/agentflow/internal/apperrors"
	"github.com/smilemakc/agentflow/internal/approval"
	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/schema"
)

// Coordinator implements engine.Evolver: it validates a self-reflect node's
// proposed Evolution against the live workflow, then — depending on its
// Mode — leaves it unapplied (dry-run), routes it through the approval
// coordinator (suggest), or applies it immediately (auto-apply).
type Coordinator struct {
	Registry *schema.Registry
	Approver *approval.Coordinator
	Persist  func(ctx context.Context, wf domain.Workflow) error

	mu      sync.Mutex
	history map[string][]domain.EvolutionSnapshot // keyed by executionID
}

func NewCoordinator(reg *schema.Registry, approver *approval.Coordinator, persist func(context.Context, domain.Workflow) error) *Coordinator {
	return &Coordinator{
		Registry: reg,
		Approver: approver,
		Persist:  persist,
		history:  make(map[string][]domain.EvolutionSnapshot),
	}
}

// History returns the applied-evolution snapshots recorded for an
// execution, in application order.
func (c *Coordinator) History(executionID string) []domain.EvolutionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EvolutionSnapshot, len(c.history[executionID]))
	copy(out, c.history[executionID])
	return out
}

func (c *Coordinator) record(executionID string, snap domain.EvolutionSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[executionID] = append(c.history[executionID], snap)
}

// Propose implements engine.Evolver: validate the proposed mutation set,
// then either apply it immediately, route it to the approval coordinator,
// or reject it, persisting the resulting workflow on success.
func (c *Coordinator) Propose(ctx context.Context, executionID, nodeID string, wf domain.Workflow, evo domain.Evolution) (applied bool, approvalRequested bool, validationErrs []*apperrors.Error, err error) {
	opts := Options{MaxMutations: evo.MaxMutations, Scope: evo.Scope, SelfNodeID: evo.NodeID}
	result := Validate(wf, c.Registry, evo, opts)
	if !result.Valid {
		return false, false, result.Errors, nil
	}

	switch evo.Mode {
	case domain.EvolutionModeDryRun, "":
		return false, false, nil, nil

	case domain.EvolutionModeAutoApply:
		if err := c.commit(ctx, executionID, wf, result.Sanitized, evo); err != nil {
			return false, false, nil, err
		}
		return true, false, nil, nil

	case domain.EvolutionModeSuggest:
		if c.Approver == nil {
			return false, true, nil, fmt.Errorf("evolution mode is suggest but no approval coordinator is configured")
		}
		resp, err := c.Approver.Suspend(ctx, executionID, nodeID, 0)
		if err != nil {
			return false, true, nil, err
		}
		if !resp.Approved {
			return false, true, nil, nil
		}
		if err := c.commit(ctx, executionID, wf, result.Sanitized, evo); err != nil {
			return false, true, nil, err
		}
		return true, true, nil, nil

	default:
		return false, false, nil, fmt.Errorf("unknown evolution mode %q", evo.Mode)
	}
}

func (c *Coordinator) commit(ctx context.Context, executionID string, wf domain.Workflow, sanitized domain.Evolution, evo domain.Evolution) error {
	before := snapshotWorkflow(wf)
	if err := Apply(ctx, wf, sanitized.Mutations, c.Persist); err != nil {
		return err
	}
	after := snapshotWorkflow(wf)
	c.record(executionID, domain.EvolutionSnapshot{
		EvolutionID: evo.ID,
		Before:      before,
		After:       after,
		AppliedAt:   time.Now(),
	})
	return nil
}
