// Package approval implements the one-shot suspension primitive that
// lets an approval node block until a human responds, or a deadline or a
// run-wide interrupt fires first.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smilemakc/agentflow/internal/domain"
)

type key struct {
	executionID string
	nodeID      string
}

type pending struct {
	respond chan domain.ApprovalResponse
	timer   *time.Timer
}

// Coordinator tracks every currently-suspended approval across all running
// executions, keyed by (executionID, nodeID).
type Coordinator struct {
	mu      sync.Mutex
	pending map[key]*pending
}

func NewCoordinator() *Coordinator {
	return &Coordinator{pending: make(map[key]*pending)}
}

// Suspend registers a wait slot and blocks until one of: a matching Submit,
// the optional timeout elapses, or ctx is cancelled (run-wide interrupt).
// Exactly one of these three ends the wait; the slot is always cleaned up
// before Suspend returns.
func (c *Coordinator) Suspend(ctx context.Context, executionID, nodeID string, timeout time.Duration) (domain.ApprovalResponse, error) {
	k := key{executionID, nodeID}
	p := &pending{respond: make(chan domain.ApprovalResponse, 1)}

	c.mu.Lock()
	c.pending[k] = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, k)
		c.mu.Unlock()
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		p.timer = time.NewTimer(timeout)
		defer p.timer.Stop()
		timeoutCh = p.timer.C
	}

	select {
	case resp := <-p.respond:
		return resp, nil
	case <-timeoutCh:
		return domain.ApprovalResponse{}, fmt.Errorf("approval timed out for node %s", nodeID)
	case <-ctx.Done():
		return domain.ApprovalResponse{}, ctx.Err()
	}
}

// Submit delivers a response to the matching suspended Suspend call. Returns
// false if no approval is currently waiting for (executionID, nodeID) —
// e.g. it already timed out, or the run was interrupted.
func (c *Coordinator) Submit(executionID, nodeID string, resp domain.ApprovalResponse) bool {
	c.mu.Lock()
	p, ok := c.pending[key{executionID, nodeID}]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case p.respond <- resp:
		return true
	default:
		return false
	}
}

// CancelAll unblocks every approval suspended for a given execution, used
// when a run-wide interrupt fires. Suspend's own ctx.Done() case normally
// handles this if the caller threads the run's context through, but
// CancelAll covers callers that hold a bare coordinator reference.
func (c *Coordinator) CancelAll(executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pending {
		if k.executionID != executionID {
			continue
		}
		select {
		case p.respond <- domain.ApprovalResponse{Approved: false, Feedback: "execution interrupted"}:
		default:
		}
	}
}
