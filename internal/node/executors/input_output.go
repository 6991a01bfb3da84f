package executors

import (
	"context"

	"github.com/smilemakc/agentflow/internal/domain"
	"github.com/smilemakc/agentflow/internal/node"
)

// Input is the graph's single entry point: it has no predecessors and
// republishes the raw execution input string as both "prompt" and "value"
// so either reference style ({{Input.prompt}} or {{Input.value}}) resolves.
type Input struct{}

func (Input) Validate(n domain.Node) error { return nil }

func (Input) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	raw, _ := in.Config["__executionInput"].(string)
	return node.Output{Data: map[string]any{"prompt": raw, "value": raw}}, nil
}

// Output is the graph's single exit point. When a "source" reference is
// configured, its resolved value becomes the execution's final result;
// otherwise the node falls back to collecting predecessor outputs
// directly — the single predecessor's output verbatim, or the whole
// keyed map when there is more than one.
type Output struct{}

func (Output) Validate(n domain.Node) error { return nil }

func (Output) Execute(ctx context.Context, in node.Input) (node.Output, error) {
	if source, _ := in.Config["source"].(string); source != "" {
		return node.Output{Data: in.Resolve(source)}, nil
	}

	merged := make(map[string]any, len(in.Predecessors))
	for _, name := range in.Predecessors {
		if out, ok := in.PredecessorOutput(name); ok {
			merged[name] = out
		}
	}
	if len(merged) == 1 {
		for _, v := range merged {
			return node.Output{Data: v}, nil
		}
	}
	return node.Output{Data: merged}, nil
}
