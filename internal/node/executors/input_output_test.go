package executors

import (
	"context"
	"testing"

	"github.com/smilemakc/agentflow/internal/node"
)

func TestInputExecutorEmitsPromptAndValue(t *testing.T) {
	out, err := Input{}.Execute(context.Background(), node.Input{
		Config: map[string]any{"__executionInput": "hello"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data := out.Data.(map[string]any)
	if data["prompt"] != "hello" || data["value"] != "hello" {
		t.Fatalf("unexpected output: %+v", data)
	}
}

func TestOutputExecutorResolvesSource(t *testing.T) {
	out, err := Output{}.Execute(context.Background(), node.Input{
		Config:  map[string]any{"source": "{{Agent.result}}"},
		Resolve: func(s string) string { return "resolved:" + s },
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Data != "resolved:{{Agent.result}}" {
		t.Fatalf("got %v", out.Data)
	}
}

func TestOutputExecutorSinglePredecessorPassthrough(t *testing.T) {
	out, err := Output{}.Execute(context.Background(), node.Input{
		Config:       map[string]any{},
		Predecessors: []string{"Agent"},
		PredecessorOutput: func(name string) (any, bool) {
			if name == "Agent" {
				return "hello", true
			}
			return nil, false
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Data != "hello" {
		t.Fatalf("expected passthrough of single predecessor, got %v", out.Data)
	}
}

func TestOutputExecutorMultiplePredecessorsKeyedMap(t *testing.T) {
	out, err := Output{}.Execute(context.Background(), node.Input{
		Config:       map[string]any{},
		Predecessors: []string{"A", "B"},
		PredecessorOutput: func(name string) (any, bool) {
			return name + "-out", true
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m := out.Data.(map[string]any)
	if m["A"] != "A-out" || m["B"] != "B-out" {
		t.Fatalf("unexpected merged map: %+v", m)
	}
}
