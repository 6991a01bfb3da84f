package executors

import (
	"context"
	"fmt"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// Merge folds every predecessor's output into one map keyed by predecessor
// node name. Under "wait-all" the scheduler only calls Execute once every
// predecessor has reached a terminal state; under "first-complete" it is
// called as soon as any predecessor completes, and Merge reports whichever
// outputs are available at that moment.
type Merge struct{}

func (Merge) Validate(n domain.Node) error {
	strategy, _ := n.Config()["strategy"].(string)
	if strategy != "wait-all" && strategy != "first-complete" {
		return fmt.Errorf("merge node %q: strategy must be \"wait-all\" or \"first-complete\", got %q", n.Name(), strategy)
	}
	return nil
}

func (Merge) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	merged := make(map[string]any, len(in.Predecessors))
	for _, name := range in.Predecessors {
		if out, ok := in.PredecessorOutput(name); ok {
			merged[name] = out
		}
	}
	return node.Output{Data: map[string]any{"merged": merged}}, nil
}
